package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/xraph/tenure"
)

func TestMapErrorPassesThroughServerErrors(t *testing.T) {
	for _, err := range []error{
		fmt.Errorf("%w: disk full", tenure.ErrPersistence),
		fmt.Errorf("%w: chain append", tenure.ErrAuditWrite),
	} {
		if got := mapError(err); !errors.Is(got, err) {
			t.Fatalf("mapError(%v) = %v, want passthrough", err, got)
		}
	}
	if mapError(nil) != nil {
		t.Fatal("mapError(nil) != nil")
	}
}

type statusCoder interface {
	StatusCode() int
}

func TestMapErrorTranslatesDomainErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{tenure.ErrGrantNotFound, http.StatusNotFound},
		{tenure.ErrIdentityNotFound, http.StatusNotFound},
		{tenure.ErrForbidden, http.StatusForbidden},
		{tenure.ErrDuplicateActiveGrant, http.StatusBadRequest},
		{tenure.ErrAlreadyRevoked, http.StatusBadRequest},
		{tenure.ErrInvalidTier, http.StatusBadRequest},
		{tenure.ErrInvalidExpiry, http.StatusBadRequest},
		{tenure.ErrInvalidRequest, http.StatusBadRequest},
	}
	for _, tt := range tests {
		var sc statusCoder
		if !errors.As(mapError(tt.err), &sc) {
			t.Fatalf("mapError(%v) is not an HTTP error", tt.err)
		}
		if sc.StatusCode() != tt.want {
			t.Fatalf("mapError(%v): expected %d, got %d", tt.err, tt.want, sc.StatusCode())
		}
	}
}

func TestRequestsDecodeTierNameOrNumber(t *testing.T) {
	var byNumber CreateGrantRequest
	if err := json.Unmarshal([]byte(`{"subject_id":"u1","tier":2}`), &byNumber); err != nil {
		t.Fatal(err)
	}
	if byNumber.Tier != tenure.TierAdmin {
		t.Fatalf("expected admin from a number, got %s", byNumber.Tier)
	}

	var byName AuthorizeRequest
	if err := json.Unmarshal([]byte(`{"subject_id":"u1","required_tier":"moderator"}`), &byName); err != nil {
		t.Fatal(err)
	}
	if byName.RequiredTier != tenure.TierModerator {
		t.Fatalf("expected moderator from a name, got %s", byName.RequiredTier)
	}

	var bad CreateGrantRequest
	if err := json.Unmarshal([]byte(`{"subject_id":"u1","tier":"root"}`), &bad); !errors.Is(err, tenure.ErrInvalidTier) {
		t.Fatalf("expected ErrInvalidTier, got %v", err)
	}
}
