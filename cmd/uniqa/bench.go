package main

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mohammad-safakhou/uniqa/internal/logging"
	"github.com/mohammad-safakhou/uniqa/models"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

//go:embed bench_cases.yaml
var defaultBenchCases []byte

type benchCase struct {
	ID       int    `yaml:"id"`
	Query    string `yaml:"query"`
	Expected int    `yaml:"expected_answer"`
}

type benchReport struct {
	Total   int
	Passed  int
	Elapsed time.Duration
}

func (r benchReport) Accuracy() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Passed) / float64(r.Total)
}

func benchCMD() *cobra.Command {
	var apiURL string
	var casesPath string
	var repeat int
	var workers int
	var timeout time.Duration

	var bench = &cobra.Command{
		Use:   "bench",
		Short: "Replay multiple-choice questions against a running API and report accuracy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cases, err := loadBenchCases(casesPath)
			if err != nil {
				return err
			}
			log := logging.New("info", true)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Starting tests for API at %s...\n", apiURL)

			client := &http.Client{Timeout: timeout}
			rep := runBench(cmd.Context(), client, strings.TrimRight(apiURL, "/"), cases, repeat, workers, log)
			fmt.Fprintf(out, "\nResults: %d/%d passed (%.0f%%)\n", rep.Passed, rep.Total, rep.Accuracy()*100)
			fmt.Fprintf(out, "Total execution time: %.2f seconds\n", rep.Elapsed.Seconds())
			return nil
		},
	}
	bench.Flags().StringVar(&apiURL, "api-url", "http://localhost:8080", "base URL of the API")
	bench.Flags().StringVar(&casesPath, "cases", "", "YAML file with test cases (default: built-in set)")
	bench.Flags().IntVar(&repeat, "repeat", 5, "times each case is sent")
	bench.Flags().IntVar(&workers, "workers", 10, "concurrent requests")
	bench.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "per-request timeout")

	return bench
}

func loadBenchCases(path string) ([]benchCase, error) {
	raw := defaultBenchCases
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read cases: %w", err)
		}
		raw = b
	}
	var cases []benchCase
	if err := yaml.Unmarshal(raw, &cases); err != nil {
		return nil, fmt.Errorf("decode cases: %w", err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("no bench cases")
	}
	return cases, nil
}

// runBench sends every case repeat times with at most workers requests in
// flight. A case passes when the API answers 200 with the expected option.
func runBench(ctx context.Context, client *http.Client, apiURL string, cases []benchCase, repeat, workers int, log zerolog.Logger) benchReport {
	if repeat <= 0 {
		repeat = 1
	}
	if workers <= 0 {
		workers = 1
	}
	start := time.Now()
	var passed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < repeat; i++ {
		for _, tc := range cases {
			tc := tc
			g.Go(func() error {
				ok, detail := runBenchCase(gctx, client, apiURL, tc)
				ev := log.Info()
				if !ok {
					ev = log.Warn()
				}
				ev.Int("case", tc.ID).Bool("passed", ok).Msg(detail)
				if ok {
					passed.Add(1)
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	return benchReport{Total: repeat * len(cases), Passed: int(passed.Load()), Elapsed: time.Since(start)}
}

func runBenchCase(ctx context.Context, client *http.Client, apiURL string, tc benchCase) (bool, string) {
	body, err := json.Marshal(map[string]any{"id": tc.ID, "query": tc.Query})
	if err != nil {
		return false, err.Error()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/request", bytes.NewReader(body))
	if err != nil {
		return false, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Sprintf("request error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, fmt.Sprintf("HTTP error %d", resp.StatusCode)
	}
	var out models.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Sprintf("decode error: %v", err)
	}
	if out.Answer == nil || *out.Answer != tc.Expected {
		got := "null"
		if out.Answer != nil {
			got = fmt.Sprint(*out.Answer)
		}
		return false, fmt.Sprintf("expected %d, got %s", tc.Expected, got)
	}
	return true, fmt.Sprintf("correct answer %d", tc.Expected)
}
