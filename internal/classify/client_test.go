package classify_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"linksort/internal/classify"
	"linksort/internal/services/llm"
)

// scriptedCompleter answers per model: an error, or a categorization of every
// item id found in the prompt.
type scriptedCompleter struct {
	mu      sync.Mutex
	fail    map[string]error
	omit    map[string]map[string]bool
	calls   []string
	batches map[string][]int
}

func newScripted() *scriptedCompleter {
	return &scriptedCompleter{
		fail:    make(map[string]error),
		omit:    make(map[string]map[string]bool),
		batches: make(map[string][]int),
	}
}

func (s *scriptedCompleter) CompleteJSON(_ context.Context, model, _, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, model)
	if err, ok := s.fail[model]; ok {
		return "", err
	}
	var payload struct {
		Items []classify.Item `json:"items"`
	}
	body := user[strings.Index(user, "{"):]
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return "", err
	}
	s.batches[model] = append(s.batches[model], len(payload.Items))
	type entry struct {
		ItemID       string  `json:"itemId"`
		CategoryPath string  `json:"categoryPath"`
		Confidence   float64 `json:"confidence"`
	}
	var results []entry
	for _, it := range payload.Items {
		if s.omit[model][it.ID] {
			continue
		}
		results = append(results, entry{ItemID: it.ID, CategoryPath: "Dev > " + model, Confidence: 0.8})
	}
	out, _ := json.Marshal(map[string]any{"categories": []string{"Dev > " + model}, "results": results})
	return string(out), nil
}

func (s *scriptedCompleter) callCount(model string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == model {
			n++
		}
	}
	return n
}

type learnedStub map[string]string

func (l learnedStub) Match(url string) (string, float64, bool) {
	path, ok := l[url]
	return path, 0.75, ok
}

func items(n int) []classify.Item {
	out := make([]classify.Item, n)
	for i := range out {
		out[i] = classify.Item{ID: fmt.Sprintf("i%d", i), Title: fmt.Sprintf("Link %d", i), URL: fmt.Sprintf("https://site%d.test/", i)}
	}
	return out
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestClassifyFallsBackInOrder(t *testing.T) {
	a := newScripted()
	a.fail["a1"] = &llm.StatusError{StatusCode: 429}
	a.fail["a2"] = context.DeadlineExceeded
	b := newScripted()

	client := classify.NewClient([]classify.Provider{
		{Name: "A", Models: []classify.Model{{ID: "a1"}, {ID: "a2"}}, Completer: a},
		{Name: "B", Models: []classify.Model{{ID: "b1"}}, Completer: b},
	}, classify.WithSleeper(noSleep))

	out, err := client.Classify(context.Background(), classify.Request{Items: items(3), Sentinel: "Unclassified"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if a.callCount("a1") != 1 || a.callCount("a2") != 1 || b.callCount("b1") != 1 {
		t.Fatalf("unexpected calls A=%v B=%v", a.calls, b.calls)
	}
	if out.Exhausted || out.Degraded != 0 {
		t.Fatalf("expected clean outcome, got %+v", out)
	}
	for _, r := range out.Results {
		if r.Provider != "B" || r.Model != "b1" || r.Source != classify.SourceAI {
			t.Fatalf("unexpected result %+v", r)
		}
	}
	if len(out.Attempts) != 3 || out.Attempts[0].Model != "a1" || out.Attempts[2].Err != nil {
		t.Fatalf("unexpected attempts %+v", out.Attempts)
	}
}

func TestClassifyReslicesAndCarriesOmittedItems(t *testing.T) {
	p := newScripted()
	p.omit["m1"] = map[string]bool{"i4": true}

	var slept []time.Duration
	client := classify.NewClient([]classify.Provider{{
		Name:      "P",
		Models:    []classify.Model{{ID: "m1", MaxItemsPerCall: 2, CallsPerMinute: 60}, {ID: "m2"}},
		Completer: p,
	}}, classify.WithSleeper(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}))

	out, err := client.Classify(context.Background(), classify.Request{Items: items(5)})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got := p.batches["m1"]; len(got) != 3 || got[0] != 2 || got[1] != 2 || got[2] != 1 {
		t.Fatalf("expected m1 chunks [2 2 1], got %v", got)
	}
	if got := p.batches["m2"]; len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected omitted item carried to m2, got %v", got)
	}
	if len(slept) != 2 {
		t.Fatalf("expected spacing between the three m1 calls, got %v", slept)
	}
	if out.Results[4].Model != "m2" || out.Results[0].Model != "m1" {
		t.Fatalf("unexpected models %+v", out.Results)
	}
	if out.Pacing != 0 {
		t.Fatalf("m2 has no rate hint, got pacing %s", out.Pacing)
	}
}

func TestClassifyTotalExhaustionDegradesEveryItem(t *testing.T) {
	p := newScripted()
	p.fail["m1"] = errors.New("boom")
	p.fail["m2"] = &llm.StatusError{StatusCode: 503}
	client := classify.NewClient([]classify.Provider{{
		Name: "P", Models: []classify.Model{{ID: "m1"}, {ID: "m2"}}, Completer: p,
	}}, classify.WithSleeper(noSleep))

	req := classify.Request{
		Items:    items(3),
		Sentinel: "Unclassified",
		Learned:  learnedStub{"https://site1.test/": "News"},
	}
	out, err := client.Classify(context.Background(), req)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !out.Exhausted || out.Degraded != 3 || len(out.Results) != 3 {
		t.Fatalf("expected exhausted outcome for all items, got %+v", out)
	}
	if r := out.Results[1]; r.Source != classify.SourceLearned || r.CategoryPath != "News" || r.Confidence != 0.75 {
		t.Fatalf("expected learned fallback, got %+v", r)
	}
	for _, i := range []int{0, 2} {
		r := out.Results[i]
		if r.Source != classify.SourceSentinel || r.CategoryPath != "Unclassified" || r.Confidence != 0 {
			t.Fatalf("expected sentinel fallback, got %+v", r)
		}
	}
	if !classify.IsTransient(out.LastErr) {
		t.Fatalf("expected last error 503 to be transient, got %v", out.LastErr)
	}
}

func TestClassifyHonorsChainOverride(t *testing.T) {
	a := newScripted()
	b := newScripted()
	client := classify.NewClient([]classify.Provider{
		{Name: "A", Models: []classify.Model{{ID: "a1"}}, Completer: a},
		{Name: "B", Models: []classify.Model{{ID: "b1"}}, Completer: b},
	}, classify.WithSleeper(noSleep))

	out, err := client.Classify(context.Background(), classify.Request{
		Items: items(1),
		Chain: []classify.ChainEntry{{Provider: "B"}, {Provider: "gone"}},
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(a.calls) != 0 || out.Results[0].Provider != "B" {
		t.Fatalf("expected B only, got A=%v result=%+v", a.calls, out.Results[0])
	}
}

func TestCompleteAdvancesOnRejectedPayload(t *testing.T) {
	p := newScripted()
	client := classify.NewClient([]classify.Provider{{
		Name: "P", Models: []classify.Model{{ID: "m1"}, {ID: "m2"}}, Completer: p,
	}})
	calls := 0
	attempt, err := client.Complete(context.Background(), "sys", `{"items": []}`, nil, func(string) error {
		calls++
		if calls == 1 {
			return errors.New("reject")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if attempt.Model != "m2" {
		t.Fatalf("expected m2 after rejection, got %+v", attempt)
	}

	p.fail["m1"] = errors.New("down")
	p.fail["m2"] = errors.New("down")
	if _, err := client.Complete(context.Background(), "sys", `{"items": []}`, nil, nil); !errors.Is(err, classify.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}
