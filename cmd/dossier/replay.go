package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/Veraticus/dossier/internal/cli"
	"github.com/Veraticus/dossier/internal/common"
	"github.com/Veraticus/dossier/internal/config"
	"github.com/Veraticus/dossier/internal/engine"
	"github.com/Veraticus/dossier/internal/extract"
	"github.com/Veraticus/dossier/internal/metrics"
	"github.com/Veraticus/dossier/internal/model"
	"github.com/Veraticus/dossier/internal/normalize"
	"github.com/Veraticus/dossier/internal/profile"
	"github.com/Veraticus/dossier/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// replayRecord is one recorded extraction: the fields the AI returned for a
// document, plus where the document belongs.
type replayRecord struct {
	Timestamp    time.Time      `json:"timestamp"`
	Fields       map[string]any `json:"fields"`
	ClientKey    string         `json:"client_key"`
	DisplayName  string         `json:"display_name"`
	DocumentType string         `json:"document_type"`
	Filename     string         `json:"filename"`
}

func replayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [files...]",
		Short: "Consolidate recorded extractions into client profiles",
		Long: `Replay recorded extraction results through a session and write one
consolidated patch per client.

Each file holds a JSON array or JSON lines of records shaped like
{"client_key", "display_name", "document_type", "fields", "filename", "timestamp"}.
Records are merged in timestamp order. Patches go to --out as one JSON file
per client, or to stdout when --out is empty.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runReplay,
	}

	cmd.Flags().String("session", "", "Session ID to resume (default: new session)")
	cmd.Flags().String("owner", "", "Owner identity recorded on the session")
	cmd.Flags().String("out", "", "Directory for client profile files")
	cmd.Flags().Int("concurrency", 4, "Number of records merged in parallel")
	cmd.Flags().Bool("keep-open", false, "Leave the session active after the replay")
	cmd.Flags().Bool("clients", false, "Print a per-client summary table")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this file after the replay")

	_ = viper.BindPFlag("replay.concurrency", cmd.Flags().Lookup("concurrency"))

	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sessionID, _ := cmd.Flags().GetString("session")
	owner, _ := cmd.Flags().GetString("owner")
	outDir, _ := cmd.Flags().GetString("out")
	keepOpen, _ := cmd.Flags().GetBool("keep-open")
	showClients, _ := cmd.Flags().GetBool("clients")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")

	records, err := loadRecords(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStore(store)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	registry := session.NewRegistry(cfg.Engine(),
		session.WithStore(store),
		session.WithMetrics(collector))

	s, err := openSession(ctx, registry, sessionID, owner)
	if err != nil {
		return err
	}
	s.SetTotalFiles(s.Summary().TotalFiles + len(records))

	slog.Info(cli.FormatTitle("Replaying extractions"),
		"session_id", s.ID(),
		"records", len(records),
		"concurrency", cfg.Concurrency)

	replayErr := replay(ctx, cfg, s, records)

	// Counters are saved even when the replay was cut short.
	persistCtx := context.WithoutCancel(ctx)
	if err := registry.Persist(persistCtx, s); err != nil {
		return err
	}
	if replayErr != nil {
		return fmt.Errorf("replay stopped: %w", replayErr)
	}

	patches := s.AllConsolidatedData()
	if err := writePatches(persistCtx, outDir, patches); err != nil {
		return err
	}

	if !keepOpen {
		registry.Close(s.ID())
		if err := registry.Persist(persistCtx, s); err != nil {
			return err
		}
	}

	summary := s.Summary()
	content := fmt.Sprintf("Session:   %s\nFiles:     %d/%d processed\nErrors:    %d\nClients:   %d",
		summary.SessionID, summary.ProcessedFiles, summary.TotalFiles, summary.Errors, summary.ClientsCount)
	fmt.Fprintln(os.Stderr, cli.RenderBox(cli.ChartIcon+" Replay complete", content)) //nolint:forbidigo // User-facing output

	if showClients {
		if err := cli.WriteClientTable(os.Stderr, s.ClientSummaries()); err != nil {
			return err
		}
	}

	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

// openSession resumes sessionID when it is known to the store and otherwise
// starts a new session under that ID.
func openSession(ctx context.Context, registry *session.Registry, sessionID, owner string) (*engine.SessionAggregator, error) {
	if sessionID == "" {
		return registry.GetOrCreate("", owner), nil
	}
	s, err := registry.GetWithRecovery(ctx, sessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		return registry.GetOrCreate(sessionID, owner), nil
	}
	if errors.Is(err, session.ErrSessionClosed) {
		return nil, common.NewUserError("Session "+sessionID+" is closed. Start a new session or omit --session.", err)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// replay merges records into s. Records of one client are merged one after
// another in the order given; different clients run in parallel. Extraction
// failures are counted on the session; only cancellation stops the run.
func replay(ctx context.Context, cfg config.Config, s *engine.SessionAggregator, records []replayRecord) error {
	handler := cli.NewInterruptHandler(os.Stderr)
	ctx, stop := handler.HandleInterrupts(ctx, s.ID())
	defer stop()

	pipeline := extract.NewPipeline(extract.JSONExtractor{}, cfg.Extract())
	bar := cli.NewProgressBar(os.Stderr, len(records), "Merging documents")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	for _, group := range groupByClient(records) {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			for _, rec := range group {
				if err := gctx.Err(); err != nil {
					return err
				}
				err := ingestRecord(gctx, pipeline, s, rec)
				_ = bar.Add(1)
				if err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ingestRecord merges one record. It only returns an error on cancellation;
// failed extractions are already counted on the session by the pipeline.
func ingestRecord(ctx context.Context, pipeline *extract.Pipeline, s *engine.SessionAggregator, rec replayRecord) error {
	doc, err := rec.document()
	if err != nil {
		s.IncrementError()
		slog.Warn("Skipping unreadable record", "filename", rec.Filename, "error", err)
		return nil
	}
	if err := pipeline.Ingest(ctx, s, doc); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// groupByClient splits records by normalized client key, keeping the record
// order inside each group and ordering groups by first appearance.
func groupByClient(records []replayRecord) [][]replayRecord {
	index := make(map[string]int)
	var groups [][]replayRecord
	for _, rec := range records {
		key := normalize.ClientKey(rec.ClientKey)
		if key == "" {
			key = normalize.ClientKey(rec.DisplayName)
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], rec)
	}
	return groups
}

func (r replayRecord) document() (extract.Document, error) {
	data, err := json.Marshal(r.Fields)
	if err != nil {
		return extract.Document{}, fmt.Errorf("failed to encode fields: %w", err)
	}
	return extract.Document{
		ClientKey:   r.ClientKey,
		DisplayName: r.DisplayName,
		Filename:    r.Filename,
		Type:        model.DocumentType(r.DocumentType),
		Data:        data,
	}, nil
}

func writePatches(ctx context.Context, outDir string, patches map[string]model.Patch) error {
	if outDir == "" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(patches); err != nil {
			return fmt.Errorf("failed to write patches: %w", err)
		}
		return nil
	}

	profiles, err := profile.NewDirStore(config.ExpandPath(outDir))
	if err != nil {
		return err
	}
	for _, key := range slices.Sorted(maps.Keys(patches)) {
		if err := profiles.ApplyPatch(ctx, key, patches[key]); err != nil {
			return fmt.Errorf("failed to apply patch for %s: %w", key, err)
		}
	}
	slog.Info(cli.FormatSuccess("Profiles updated"), "clients", len(patches), "dir", outDir)
	return nil
}

// loadRecords reads every file and returns the records in timestamp order.
// Records without a timestamp sort first; ties keep their file order.
func loadRecords(paths []string) ([]replayRecord, error) {
	var records []replayRecord
	for _, path := range paths {
		f, err := os.Open(path) //nolint:gosec // operator-supplied input file
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		recs, err := readRecords(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		records = append(records, recs...)
	}

	slices.SortStableFunc(records, func(a, b replayRecord) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return records, nil
}

// readRecords accepts either a JSON array of records or a stream of JSON
// objects (JSON lines).
func readRecords(r io.Reader) ([]replayRecord, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var records []replayRecord
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("invalid record array: %w", err)
		}
		return records, nil
	}

	var records []replayRecord
	for {
		var rec replayRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("invalid record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		if !bytes.ContainsAny(b, " \t\r\n") {
			return b[0], nil
		}
		if _, err := br.Discard(1); err != nil {
			return 0, err
		}
	}
}
