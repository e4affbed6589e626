package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"shardd/pkg/types"
)

const repo = "org/tiny"

func tinyFiles() map[string][]byte {
	return map[string][]byte{
		"config.json":       []byte(`{"num_hidden_layers":4}`),
		"tokenizer.json":    []byte(`{}`),
		"model.safetensors": bytes.Repeat([]byte{7}, 4096),
		"README.md":         []byte("not part of the artifact set"),
	}
}

var (
	head = types.Shard{ModelID: repo, StartLayer: 0, EndLayer: 1, NLayers: 4}
	tail = types.Shard{ModelID: repo, StartLayer: 2, EndLayer: 3, NLayers: 4}
)

func TestE2E_PrefetchThenListModels(t *testing.T) {
	hubSrv := newHub(t, repo, tinyFiles())
	st := newStack(t, hubSrv.URL, &backend{}, 4, time.Second)

	resp, body := httpPostJSON(t, st.srv.URL+"/shards/prefetch", types.PrefetchRequest{Shard: head})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("prefetch status=%d body=%s", resp.StatusCode, body)
	}
	var pr types.PrefetchResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		t.Fatalf("decode: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	var op types.OperationStatus
	for time.Now().Before(deadline) {
		_, body := httpGet(t, st.srv.URL+"/shards/prefetch/"+pr.OperationID)
		if err := json.Unmarshal(body, &op); err != nil {
			t.Fatalf("decode op: %v", err)
		}
		if op.State != "running" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if op.State != "done" || op.Path == "" {
		t.Fatalf("prefetch did not finish: %+v", op)
	}

	_, body = httpGet(t, st.srv.URL+"/downloads")
	var dr types.DownloadsResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		t.Fatalf("decode downloads: %v", err)
	}
	if len(dr.Downloads) != 1 || dr.Downloads[0].Status.Status != types.DownloadComplete || dr.Downloads[0].Fraction != 1 {
		t.Fatalf("unexpected downloads %+v", dr)
	}

	_, body = httpGet(t, st.srv.URL+"/models")
	var mr types.ModelsResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		t.Fatalf("decode models: %v", err)
	}
	if len(mr.Models) != 1 || mr.Models[0].ID != repo || !mr.Models[0].Complete {
		t.Fatalf("unexpected models %+v", mr.Models)
	}
}

func TestE2E_TwoStagePipeline(t *testing.T) {
	hubSrv := newHub(t, repo, tinyFiles())
	first := newStack(t, hubSrv.URL, &backend{}, 4, time.Second)
	last := newStack(t, hubSrv.URL, &backend{}, 4, time.Second)

	resp, body := httpPostJSON(t, first.srv.URL+"/infer/prompt", types.InferPromptRequest{RequestID: "req-1", Shard: head, Prompt: "a b c"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("prompt status=%d body=%s", resp.StatusCode, body)
	}
	var hidden types.InferResponse
	if err := json.Unmarshal(body, &hidden); err != nil {
		t.Fatal(err)
	}
	if hidden.RequestID != "req-1" || hidden.Terminal || hidden.Output.IsScalar() {
		t.Fatalf("unexpected first stage output %+v", hidden)
	}
	if hidden.State != `{"start_pos":0,"n_captured_toks":4}` {
		t.Fatalf("first stage state=%s", hidden.State)
	}

	resp, body = httpPostJSON(t, last.srv.URL+"/infer/tensor", types.InferTensorRequest{RequestID: "req-1", Shard: tail, Tensor: hidden.Output, State: hidden.State})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tensor status=%d body=%s", resp.StatusCode, body)
	}
	var tok types.InferResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		t.Fatal(err)
	}
	if len(tok.Output.Data) != 1 || tok.Output.Data[0] != 9 || tok.Terminal {
		t.Fatalf("unexpected token output %+v", tok)
	}
	if tok.State != `{"start_pos":4,"n_captured_toks":1}` {
		t.Fatalf("last stage state=%s", tok.State)
	}

	_, body = httpGet(t, last.srv.URL+"/status")
	var sr types.StatusResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		t.Fatal(err)
	}
	if sr.LoadedShard == nil || *sr.LoadedShard != tail || sr.State != "ready" {
		t.Fatalf("unexpected status %+v", sr)
	}
}

func TestE2E_UnknownRepoIs404(t *testing.T) {
	hubSrv := newHub(t, repo, tinyFiles())
	st := newStack(t, hubSrv.URL, &backend{}, 4, time.Second)
	missing := types.Shard{ModelID: "org/missing", StartLayer: 0, EndLayer: 0, NLayers: 1}
	resp, body := httpPostJSON(t, st.srv.URL+"/infer/prompt", types.InferPromptRequest{Shard: missing, Prompt: "hi"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", resp.StatusCode, body)
	}
	if resp, _ := httpGet(t, st.srv.URL+"/readyz"); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("node must not be ready after a failed load, got %d", resp.StatusCode)
	}
}

// TestE2E_Backpressure429 verifies 429 when the engine queue is full and the
// wait timeout elapses.
func TestE2E_Backpressure429(t *testing.T) {
	hubSrv := newHub(t, repo, tinyFiles())
	gate := make(chan struct{})
	st := newStack(t, hubSrv.URL, &backend{gate: gate}, 1, 20*time.Millisecond)

	payload, _ := json.Marshal(types.InferPromptRequest{Shard: tail, Prompt: "x"})
	held := make(chan int, 1)
	go func() {
		resp, err := http.Post(st.srv.URL+"/infer/prompt", "application/json", bytes.NewReader(payload))
		if err != nil {
			held <- 0
			return
		}
		resp.Body.Close()
		held <- resp.StatusCode
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, body := httpGet(t, st.srv.URL+"/status")
		var sr types.StatusResponse
		if err := json.Unmarshal(body, &sr); err != nil {
			t.Fatal(err)
		}
		if sr.Inflight == 1 {
			break
		}
		if time.Now().After(deadline) {
			close(gate)
			t.Fatalf("held request never started")
		}
		time.Sleep(2 * time.Millisecond)
	}

	got := 0
	for time.Now().Before(deadline) && got != http.StatusTooManyRequests {
		resp, _ := httpPostJSON(t, st.srv.URL+"/infer/prompt", types.InferPromptRequest{Shard: tail, Prompt: "x"})
		got = resp.StatusCode
	}
	close(gate)
	if code := <-held; code != http.StatusOK {
		t.Fatalf("held request status=%d", code)
	}
	if got != http.StatusTooManyRequests {
		t.Fatalf("expected 429 while the engine is busy, got %d", got)
	}
}
