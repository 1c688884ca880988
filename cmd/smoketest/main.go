// Command smoketest exercises a running model server end to end: it
// waits for /health, sends one prediction and checks the response is
// well formed. Exit code 0 means the deployment is serving.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"modelgate/internal/cfg"
)

type healthResp struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

type predictResp struct {
	Prediction    int       `json:"prediction"`
	Probabilities []float64 `json:"probabilities"`
	Confidence    float64   `json:"confidence"`
	ModelVersion  string    `json:"model_version"`
}

type errorResp struct {
	Error string `json:"error"`
}

func main() {
	var (
		baseURL  = flag.String("url", "", "Base URL of the model server (defaults to localhost on the configured port)")
		attempts = flag.Int("attempts", 10, "Health poll attempts before giving up")
		interval = flag.Duration("interval", time.Second, "Delay between health polls")
	)
	flag.Parse()

	_ = godotenv.Load()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	url := *baseURL
	if url == "" {
		c := cfg.Load("")
		url = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}

	client := resty.New().SetTimeout(5 * time.Second)

	if err := waitHealthy(client, url, *attempts, *interval); err != nil {
		log.Error().Err(err).Msg("smoke test failed")
		os.Exit(1)
	}
	if err := checkPredict(client, url); err != nil {
		log.Error().Err(err).Msg("smoke test failed")
		os.Exit(1)
	}

	log.Info().Str("url", url).Msg("smoke test passed")
}

func waitHealthy(client *resty.Client, url string, attempts int, interval time.Duration) error {
	for i := 1; i <= attempts; i++ {
		health := &healthResp{}
		resp, err := client.R().SetResult(health).Get(url + "/health")
		if err == nil && resp.StatusCode() == 200 {
			if !health.ModelLoaded {
				return fmt.Errorf("server is %s: no model loaded", health.Status)
			}
			log.Info().Int("attempt", i).Msg("server healthy")
			return nil
		}
		if err != nil {
			log.Warn().Err(err).Int("attempt", i).Msg("health check failed, retrying")
		} else {
			log.Warn().Int("status", resp.StatusCode()).Int("attempt", i).Msg("health check failed, retrying")
		}
		time.Sleep(interval)
	}
	return fmt.Errorf("server not healthy after %d attempts", attempts)
}

func checkPredict(client *resty.Client, url string) error {
	features := make([]float64, cfg.FeatureCount)
	for i := range features {
		features[i] = float64(i) + 0.5
	}

	result := &predictResp{}
	apiErr := &errorResp{}
	resp, err := client.R().
		SetBody(map[string][]float64{"features": features}).
		SetResult(result).
		SetError(apiErr).
		Post(url + "/predict")
	if err != nil {
		return fmt.Errorf("predict request: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("predict returned %d: %s", resp.StatusCode(), apiErr.Error)
	}

	if result.Prediction != 0 && result.Prediction != 1 {
		return fmt.Errorf("prediction %d outside expected classes", result.Prediction)
	}
	total := 0.0
	for _, p := range result.Probabilities {
		total += p
	}
	if math.Abs(total-1.0) > 1e-6 {
		return fmt.Errorf("probabilities sum to %.9f", total)
	}

	log.Info().
		Int("prediction", result.Prediction).
		Float64("confidence", result.Confidence).
		Str("model_version", result.ModelVersion).
		Msg("prediction verified")
	return nil
}
