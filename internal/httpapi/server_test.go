package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/elo-community/elo-rating-service/internal/elo"
	"github.com/elo-community/elo-rating-service/internal/h2h"
	"github.com/elo-community/elo-rating-service/internal/matchresult"
	"github.com/elo-community/elo-rating-service/pkg/matchdto"
)

func newTestServer(t *testing.T) *http.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := matchresult.NewMemoryRepository()
	engine := elo.NewEngine(elo.DefaultConfig())
	agg := h2h.NewAggregator(repo, 0)
	mgr := matchresult.NewManager(rdb, repo, engine, agg, nil, matchresult.Options{})

	srv := NewServer(mgr, agg)
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = srv.srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(context.Context, string, string) (net.Conn, error) {
				return ln.Dial()
			},
		},
		Timeout: 5 * time.Second,
	}
}

func doJSON(t *testing.T, client *http.Client, method, path string, body any, out any) int {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, "http://svc"+path, buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestSubmitAndFetchClaim(t *testing.T) {
	client := newTestServer(t)

	var created matchdto.ClaimResponse
	code := doJSON(t, client, http.MethodPost, "/api/v1/matches", matchdto.SubmitRequest{
		ReporterID: "alice", PartnerID: "bob", Category: "tennis", Result: "win",
	}, &created)
	if code != fasthttp.StatusCreated {
		t.Fatalf("submit status = %d, want 201", code)
	}
	if created.Claim == nil || created.Claim.Status != "PENDING" {
		t.Fatalf("unexpected claim: %+v", created.Claim)
	}

	var fetched matchdto.ClaimResponse
	code = doJSON(t, client, http.MethodGet, "/api/v1/matches/"+created.Claim.ID, nil, &fetched)
	if code != fasthttp.StatusOK {
		t.Fatalf("get status = %d, want 200", code)
	}
	if fetched.Claim.ID != created.Claim.ID {
		t.Fatalf("fetched id = %s, want %s", fetched.Claim.ID, created.Claim.ID)
	}
}

func TestCorroborateFlowOverHTTP(t *testing.T) {
	client := newTestServer(t)

	var created matchdto.ClaimResponse
	doJSON(t, client, http.MethodPost, "/api/v1/matches", matchdto.SubmitRequest{
		ReporterID: "alice", PartnerID: "bob", Category: "tennis", Result: "win",
	}, &created)

	var resolved matchdto.ClaimResponse
	code := doJSON(t, client, http.MethodPost, fmt.Sprintf("/api/v1/matches/%s/corroborate", created.Claim.ID),
		matchdto.CorroborateRequest{PartnerID: "bob", Result: "lose"}, &resolved)
	if code != fasthttp.StatusOK {
		t.Fatalf("corroborate status = %d, want 200", code)
	}
	if resolved.Claim.Status != "ACCEPTED" || resolved.Claim.Method != "corroborated" {
		t.Fatalf("claim not accepted: %+v", resolved.Claim)
	}

	// second corroboration hits a terminal claim
	var derr matchdto.DomainError
	code = doJSON(t, client, http.MethodPost, fmt.Sprintf("/api/v1/matches/%s/corroborate", created.Claim.ID),
		matchdto.CorroborateRequest{PartnerID: "bob", Result: "lose"}, &derr)
	if code != fasthttp.StatusConflict {
		t.Fatalf("replay status = %d, want 409", code)
	}
	if derr.Code != "invalid_state_transition" {
		t.Fatalf("replay code = %s", derr.Code)
	}

	var profile matchdto.ProfileResponse
	code = doJSON(t, client, http.MethodGet, "/api/v1/ratings/alice?category=tennis", nil, &profile)
	if code != fasthttp.StatusOK {
		t.Fatalf("profile status = %d, want 200", code)
	}
	if profile.Profile.Rating != 1410 {
		t.Fatalf("alice rating = %v, want 1410", profile.Profile.Rating)
	}

	var gap matchdto.H2HResponse
	code = doJSON(t, client, http.MethodGet, "/api/v1/h2h?a=alice&b=bob&category=tennis", nil, &gap)
	if code != fasthttp.StatusOK {
		t.Fatalf("h2h status = %d, want 200", code)
	}
	if gap.Gap != 1 {
		t.Fatalf("gap = %d, want 1", gap.Gap)
	}
}

func TestBadRequests(t *testing.T) {
	client := newTestServer(t)

	var derr matchdto.DomainError
	code := doJSON(t, client, http.MethodPost, "/api/v1/matches", matchdto.SubmitRequest{
		ReporterID: "alice", PartnerID: "bob", Category: "tennis", Result: "crushed",
	}, &derr)
	if code != fasthttp.StatusBadRequest || derr.Code != "invalid_result" {
		t.Fatalf("invalid result: status=%d code=%s", code, derr.Code)
	}

	code = doJSON(t, client, http.MethodGet, "/api/v1/matches/mr-does-not-exist", nil, &derr)
	if code != fasthttp.StatusNotFound {
		t.Fatalf("missing claim status = %d, want 404", code)
	}

	code = doJSON(t, client, http.MethodGet, "/api/v1/matches", nil, &derr)
	if code != fasthttp.StatusBadRequest {
		t.Fatalf("list without participant status = %d, want 400", code)
	}

	code = doJSON(t, client, http.MethodGet, "/healthz", nil, nil)
	if code != fasthttp.StatusOK {
		t.Fatalf("healthz status = %d", code)
	}
}

func TestStrangerCannotCorroborate(t *testing.T) {
	client := newTestServer(t)

	var created matchdto.ClaimResponse
	doJSON(t, client, http.MethodPost, "/api/v1/matches", matchdto.SubmitRequest{
		ReporterID: "alice", PartnerID: "bob", Category: "tennis", Result: "win",
	}, &created)

	var derr matchdto.DomainError
	code := doJSON(t, client, http.MethodPost, fmt.Sprintf("/api/v1/matches/%s/corroborate", created.Claim.ID),
		matchdto.CorroborateRequest{PartnerID: "mallory", Result: "lose"}, &derr)
	if code != fasthttp.StatusForbidden || derr.Code != "not_participant" {
		t.Fatalf("stranger corroborate: status=%d code=%s", code, derr.Code)
	}
}
