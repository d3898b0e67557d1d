package common

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
)

type request struct {
	Site string `validate:"required"`
}

func TestGenericEchoValidator(t *testing.T) {
	v := NewGenericEchoValidator()
	if v.Validator == nil {
		t.Fatal("expected validator to be built by the constructor")
	}

	if err := v.Validate(&request{Site: "pondicherry.com"}); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	err := v.Validate(&request{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", httpErr.Code)
	}
}

func TestGenericEchoValidator_ConcurrentUse(t *testing.T) {
	for name, v := range map[string]*GenericEchoValidator{
		"constructed": NewGenericEchoValidator(),
		"zero value":  {},
	} {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			errs := make(chan error, 32)
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					req := &request{Site: "pondicherry.com"}
					if i%2 == 1 {
						req = &request{}
					}
					err := v.Validate(req)
					if (err == nil) == (i%2 == 1) {
						errs <- fmt.Errorf("request %d: unexpected result %v", i, err)
					}
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Error(err)
			}
			if name == "zero value" && v.Validator != nil {
				t.Error("Validate must not modify the validator")
			}
		})
	}
}

func TestLevelFromEnv(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"noise": slog.LevelInfo,
	}
	for value, want := range tests {
		t.Setenv("LOG_LEVEL", value)
		if got := LevelFromEnv(); got != want {
			t.Errorf("LOG_LEVEL=%q: expected %v, got %v", value, want, got)
		}
	}
}

func TestCreateLogger_RespectsLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	var buf bytes.Buffer
	logger := CreateLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "site", "pondicherry.com")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "site=pondicherry.com") {
		t.Errorf("expected warn message with attributes, got %s", out)
	}
}
