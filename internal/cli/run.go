package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"quizflow/internal/config"
	"quizflow/internal/domain"
	"quizflow/internal/engine"
	"quizflow/internal/tracker"
)

// NewRunCmd builds the interactive terminal runner: it drives the full flow
// (branching, gating, lead capture) against a quiz API or a local definition
// file, which is handy for trying out a definition before embedding it.
func NewRunCmd(configPath *string) *cobra.Command {
	var (
		quizID   string
		apiBase  string
		filePath string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a quiz interactively in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil && !os.IsNotExist(err) {
				return err
			}
			if apiBase == "" {
				apiBase = cfg.Flow.APIBase
			}
			return runQuiz(cmd.Context(), cfg, quizID, apiBase, filePath)
		},
	}
	cmd.Flags().StringVar(&quizID, "quiz", "quiz-1", "quiz id to run")
	cmd.Flags().StringVar(&apiBase, "api", "", "quiz API base URL (empty runs untracked)")
	cmd.Flags().StringVar(&filePath, "file", "", "local quiz definition JSON (overrides --api for loading)")
	return cmd
}

func runQuiz(ctx context.Context, cfg config.Config, quizID, apiBase, filePath string) error {
	quiz, err := loadQuiz(ctx, quizID, apiBase, filePath)
	if err != nil {
		return err
	}

	var trk engine.Tracker = engine.NopTracker{}
	var client *tracker.Client
	if apiBase != "" {
		client = tracker.NewClient(apiBase, quiz.ID, config.Duration(cfg.Flow.Timeout, 0))
		trk = client
	}

	flow := engine.NewFlow(quiz, trk, 0)
	in := bufio.NewScanner(os.Stdin)

	fmt.Println(quiz.Title)
	fmt.Println("press enter to start")
	in.Scan()
	flow.Start(ctx, domain.SessionAttribution{})

	for {
		switch flow.Screen() {
		case engine.ScreenQuestion:
			if err := askQuestion(ctx, flow, in); err != nil {
				return err
			}
		case engine.ScreenLeadCapture:
			if err := askLead(ctx, flow, in, quiz.LeadFields); err != nil {
				return err
			}
		case engine.ScreenResult:
			printResult(flow)
			if flow.LeadPending() {
				if err := askLead(ctx, flow, in, quiz.LeadFields); err != nil {
					return err
				}
			}
			if client != nil {
				client.Flush()
			}
			return nil
		case engine.ScreenStart:
			fmt.Println("press enter to start")
			in.Scan()
			flow.Start(ctx, domain.SessionAttribution{})
		}
	}
}

func askQuestion(ctx context.Context, flow *engine.Flow, in *bufio.Scanner) error {
	question, ok := flow.CurrentQuestion()
	if !ok {
		return nil
	}
	fmt.Println()
	fmt.Println(question.Prompt)
	switch {
	case question.Type == domain.Rating:
		fmt.Printf("rate 1-%d", question.RatingScale)
	case question.Type.IsChoice():
		for i, option := range question.Options {
			fmt.Printf("  %d) %s\n", i+1, option.Text)
		}
		if question.Type == domain.MultipleChoice {
			fmt.Print("pick numbers, comma separated")
		} else {
			fmt.Print("pick a number")
		}
	default:
		fmt.Print("type your answer")
	}
	fmt.Println(" (b = back, enter = skip)")

	for {
		if !in.Scan() {
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		if line == "b" {
			flow.Back()
			return nil
		}
		if line == "" {
			if err := flow.Next(ctx); err != nil {
				fmt.Println("this question is required")
				continue
			}
			return nil
		}
		value, err := parseAnswer(question, line)
		if err != nil {
			fmt.Println(err)
			continue
		}
		flow.Answer(ctx, value)
		if !question.Type.AutoAdvances() {
			if err := flow.Next(ctx); err != nil {
				fmt.Println(err)
				continue
			}
		}
		return nil
	}
}

func parseAnswer(question domain.Question, line string) (any, error) {
	switch question.Type {
	case domain.SingleChoice, domain.ImageChoice:
		option, err := optionAt(question, line)
		if err != nil {
			return nil, err
		}
		return option.ID, nil
	case domain.MultipleChoice:
		ids := make([]string, 0)
		for _, part := range strings.Split(line, ",") {
			option, err := optionAt(question, strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			ids = append(ids, option.ID)
		}
		return ids, nil
	case domain.Rating:
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > question.RatingScale {
			return nil, fmt.Errorf("enter a number between 1 and %d", question.RatingScale)
		}
		return strconv.Itoa(n), nil
	default:
		return line, nil
	}
}

func optionAt(question domain.Question, raw string) (domain.AnswerOption, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > len(question.Options) {
		return domain.AnswerOption{}, fmt.Errorf("enter a number between 1 and %d", len(question.Options))
	}
	return question.Options[n-1], nil
}

func askLead(ctx context.Context, flow *engine.Flow, in *bufio.Scanner, fields []domain.LeadField) error {
	for {
		lead := make(map[string]string, len(fields))
		for _, field := range fields {
			label := field.Label
			if label == "" {
				label = field.Name
			}
			fmt.Printf("%s: ", label)
			if !in.Scan() {
				return in.Err()
			}
			lead[field.Name] = strings.TrimSpace(in.Text())
		}
		if err := flow.SubmitLead(ctx, lead); err != nil {
			fmt.Println(err)
			continue
		}
		return nil
	}
}

func printResult(flow *engine.Flow) {
	fmt.Println()
	if result, ok := flow.Result(); ok {
		fmt.Printf("result: %s (score %d)\n", result.Title, flow.Score())
		if result.Description != "" {
			fmt.Println(result.Description)
		}
		return
	}
	fmt.Printf("done! score %d\n", flow.Score())
}

func loadQuiz(ctx context.Context, quizID, apiBase, filePath string) (domain.Quiz, error) {
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return domain.Quiz{}, err
		}
		var quiz domain.Quiz
		if err := json.Unmarshal(data, &quiz); err != nil {
			return domain.Quiz{}, fmt.Errorf("parse quiz definition: %w", err)
		}
		return quiz, nil
	}
	if apiBase == "" {
		return domain.Quiz{}, fmt.Errorf("either --api or --file is required")
	}

	url := strings.TrimRight(apiBase, "/") + "/public/quiz/" + quizID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Quiz{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("fetch quiz: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.Quiz{}, fmt.Errorf("fetch quiz: status %d", resp.StatusCode)
	}
	var quiz domain.Quiz
	if err := json.NewDecoder(resp.Body).Decode(&quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("decode quiz: %w", err)
	}
	return quiz, nil
}
