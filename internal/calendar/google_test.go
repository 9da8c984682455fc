package calendar

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestClassifyGoogleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"401 maps to auth", &googleapi.Error{Code: http.StatusUnauthorized}, ErrProviderAuth},
		{"403 maps to auth", &googleapi.Error{Code: http.StatusForbidden}, ErrProviderAuth},
		{"409 maps to conflict", &googleapi.Error{Code: http.StatusConflict}, ErrEventConflict},
		{"500 maps to unavailable", &googleapi.Error{Code: http.StatusInternalServerError}, ErrProviderUnavailable},
		{"deadline maps to unavailable", context.DeadlineExceeded, ErrProviderUnavailable},
		{"opaque maps to unavailable", errors.New("socket closed"), ErrProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyGoogleError(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("classifyGoogleError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
