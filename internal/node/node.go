// Package node wires the artifact resolver and the shard-local engine into
// the service exposed over HTTP.
package node

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"shardd/internal/download"
	"shardd/internal/engine"
	"shardd/internal/registry"
	"shardd/pkg/types"
)

// Config wires a Node.
type Config struct {
	Engine     *engine.Engine
	Downloader *download.Downloader
	// BroadcastInterval throttles progress forwarded to the log and to
	// Subscribe listeners.
	BroadcastInterval time.Duration
	Logger            zerolog.Logger
}

// Node is the service behind the HTTP API.
type Node struct {
	eng *engine.Engine
	dl  *download.Downloader
	log zerolog.Logger

	mu        sync.Mutex
	ops       map[string]*types.OperationStatus
	listeners map[string]func(types.Shard, types.ProgressEvent)
	wg        sync.WaitGroup
}

// New builds a Node and registers its throttled "broadcast" progress
// subscriber on the downloader's bus.
func New(cfg Config) *Node {
	n := &Node{
		eng:       cfg.Engine,
		dl:        cfg.Downloader,
		log:       cfg.Logger,
		ops:       make(map[string]*types.OperationStatus),
		listeners: make(map[string]func(types.Shard, types.ProgressEvent)),
	}
	n.dl.OnProgress().Register("broadcast", download.Throttle(cfg.BroadcastInterval, n.broadcast))
	return n
}

func (n *Node) Status() types.StatusResponse { return n.eng.Status() }

func (n *Node) Ready() bool { return n.eng.Ready() }

// ListModels scans the cache directory for models with weight files.
func (n *Node) ListModels() ([]types.Model, error) {
	return registry.LoadDir(n.dl.CacheDir())
}

// Downloads lists the retained statuses of engine, defaulting to this node's
// engine, ordered by model and layer range.
func (n *Node) Downloads(engineName string) types.DownloadsResponse {
	if engineName == "" {
		engineName = n.eng.Name()
	}
	statuses := n.dl.ShardDownloadStatus(engineName)
	out := types.DownloadsResponse{Engine: engineName, Downloads: make([]types.ShardDownload, 0, len(statuses))}
	for sh, st := range statuses {
		out.Downloads = append(out.Downloads, types.ShardDownload{Shard: sh, Status: st, Fraction: st.Fraction()})
	}
	sort.Slice(out.Downloads, func(i, j int) bool {
		a, b := out.Downloads[i].Shard, out.Downloads[j].Shard
		if a.ModelID != b.ModelID {
			return a.ModelID < b.ModelID
		}
		if a.StartLayer != b.StartLayer {
			return a.StartLayer < b.StartLayer
		}
		return a.EndLayer < b.EndLayer
	})
	return out
}

func (n *Node) InferPrompt(ctx context.Context, req types.InferPromptRequest) (types.InferResponse, error) {
	rid := requestID(req.RequestID)
	res, err := n.eng.InferPrompt(ctx, rid, req.Shard, req.Prompt, req.State)
	if err != nil {
		return types.InferResponse{}, err
	}
	return types.InferResponse{RequestID: rid, Output: res.Output, State: res.State, Terminal: res.Terminal}, nil
}

func (n *Node) InferTensor(ctx context.Context, req types.InferTensorRequest) (types.InferResponse, error) {
	rid := requestID(req.RequestID)
	res, err := n.eng.InferTensor(ctx, rid, req.Shard, req.Tensor, req.State)
	if err != nil {
		return types.InferResponse{}, err
	}
	return types.InferResponse{RequestID: rid, Output: res.Output, State: res.State, Terminal: res.Terminal}, nil
}

func requestID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
