package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type target struct {
	LearnerID  string `json:"learner_id"`
	OfferingID string `json:"offering_id"`
	Critical   bool   `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type decision struct {
	TagsToApply       []string `json:"tags_to_apply"`
	ClearedCategories []string `json:"cleared_categories"`
	MatchedRules      []string `json:"matched_rules"`
}

type preview struct {
	Decision decision `json:"decision"`
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type result struct {
	Target   target
	Preview  *preview
	Status   int
	Duration time.Duration
	Error    error
}

func main() {
	var (
		base        string
		email       string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&email, "email", "", "Operator email (password read from PREVIEW_AUDIT_PASSWORD)")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "preview_audit", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}

	token, err := login(client, base, email, os.Getenv("PREVIEW_AUDIT_PASSWORD"))
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}

	var criticalFailures int
	results := make([]result, 0, len(targets))
	for _, t := range targets {
		res := previewTarget(client, base, token, t)
		if res.Error != nil && t.Critical {
			criticalFailures++
		}
		results = append(results, res)
	}

	printReport(results)

	fmt.Printf("Targets: %d, critical failures: %d\n", len(results), criticalFailures)
	if criticalFailures > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func login(client *http.Client, base, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", fmt.Errorf("email flag and PREVIEW_AUDIT_PASSWORD are required")
	}

	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}

	resp, err := client.Post(strings.TrimRight(base, "/")+"/api/v1/auth/login", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", err
	}
	var data struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", err
	}
	if data.AccessToken == "" {
		return "", fmt.Errorf("login response carried no token")
	}
	return data.AccessToken, nil
}

func previewTarget(client *http.Client, base, token string, tgt target) result {
	res := result{Target: tgt}

	query := url.Values{}
	query.Set("learnerId", tgt.LearnerID)
	query.Set("offeringId", tgt.OfferingID)
	endpoint := strings.TrimRight(base, "/") + "/api/v1/enrollments/preview?" + query.Encode()

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		res.Error = err
		return res
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err
		return res
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Error = fmt.Errorf("read body: %w", err)
		return res
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		res.Error = fmt.Errorf("decode response: %w", err)
		return res
	}
	if env.Error != nil {
		res.Error = fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
		return res
	}

	var p preview
	if err := json.Unmarshal(env.Data, &p); err != nil {
		res.Error = fmt.Errorf("decode preview: %w", err)
		return res
	}
	res.Preview = &p
	return res
}

func printReport(results []result) {
	fmt.Println("learner/offering | status | intent | duration")
	fmt.Println(strings.Repeat("-", 72))
	for _, r := range results {
		key := r.Target.LearnerID + "/" + r.Target.OfferingID
		if r.Error != nil {
			fmt.Printf("%s | %d | ERROR: %v | %s\n", key, r.Status, r.Error, r.Duration.Round(time.Millisecond))
			continue
		}
		intent := "no managed tags"
		if len(r.Preview.Decision.TagsToApply) > 0 {
			intent = strings.Join(r.Preview.Decision.TagsToApply, ", ")
		}
		fmt.Printf("%s | %d | %s | %s\n", key, r.Status, intent, r.Duration.Round(time.Millisecond))
	}
}
