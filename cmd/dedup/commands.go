package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"comps_dedup/internal/adapters/geocoder"
	redisad "comps_dedup/internal/adapters/redis"
	"comps_dedup/internal/adapters/tabular"
	"comps_dedup/internal/app"
	"comps_dedup/internal/dedup"
	"comps_dedup/internal/domain"
	mysqlrepo "comps_dedup/internal/storage/mysql"
)

// engineFlags override the env configuration when set.
type engineFlags struct {
	tolerance, geoTolerance, geoRadius float64
	minComparables, workers            int
}

func (f *engineFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.tolerance, "tolerance", 0, "relative GLA tolerance of the address pass (default 0.15)")
	cmd.Flags().Float64Var(&f.geoTolerance, "geo-tolerance", 0, "relative GLA tolerance of the geographic pass (default 0.02)")
	cmd.Flags().Float64Var(&f.geoRadius, "geo-radius", 0, "geographic pass radius in meters (default 10)")
	cmd.Flags().IntVar(&f.minComparables, "min-comparables", 0, "comparable floor per subject (default 3)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "groups evaluated concurrently")
}

func (f *engineFlags) options(cmd *cobra.Command) dedup.Options {
	o := cfg.DedupOptions()
	if cmd.Flags().Changed("tolerance") {
		o.TolerancePct = f.tolerance
	}
	if cmd.Flags().Changed("geo-tolerance") {
		o.GeoTolerancePct = f.geoTolerance
	}
	if cmd.Flags().Changed("geo-radius") {
		o.GeoRadiusMeters = f.geoRadius
	}
	if cmd.Flags().Changed("min-comparables") {
		o.MinComparables = f.minComparables
	}
	if cmd.Flags().Changed("workers") {
		o.Workers = f.workers
	}
	return o
}

// detectFormat picks the input format from the file extension.
func detectFormat(path, format string) string {
	if format != "" {
		return strings.ToLower(format)
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return "csv"
	}
	return "appraisals"
}

// readInput loads records as csv (flat table), json (flat records) or
// appraisals (nested appraisal document).
func readInput(path, format string) ([]domain.PropertyRecord, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	switch detectFormat(path, format) {
	case "csv":
		return tabular.ReadCSV(r)
	case "json":
		return app.DecodeRecords(r)
	case "appraisals":
		return app.DecodeAppraisals(r)
	default:
		return nil, fmt.Errorf("unknown format %q (want csv, json or appraisals)", format)
	}
}

func createFile(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func openDB(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// newGeocoder builds the cached geocoder; the returned closer releases Redis.
func newGeocoder() (domain.Geocoder, func(), error) {
	client, err := geocoder.New(cfg.GeocoderBase, cfg.GeocoderAgent, cfg.GeocoderRPS)
	if err != nil {
		return nil, nil, err
	}
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	return geocoder.NewCached(client, cache, int(cfg.GeocodeTTL.Seconds())), func() { _ = cache.Close() }, nil
}

// report is the run summary written next to the cleaned table.
type report struct {
	RunID        string                `json:"run_id"`
	Input        int                   `json:"input"`
	Kept         int                   `json:"kept"`
	Detected     []int64               `json:"detected"`
	Removed      []int64               `json:"removed"`
	Removals     []domain.Removal      `json:"removals"`
	Restorations []dedup.Restoration   `json:"restorations,omitempty"`
	BelowFloor   []domain.SubjectCount `json:"below_floor,omitempty"`
	Stats        dedup.DetectStats     `json:"stats"`
	Geocoded     int                   `json:"geocoded"`
}

func newReport(res app.CleanResult, input int) report {
	return report{
		RunID:        res.RunID,
		Input:        input,
		Kept:         len(res.Cleaned),
		Detected:     res.Detected,
		Removed:      res.Removed,
		Removals:     res.Removals,
		Restorations: res.Restorations,
		BelowFloor:   res.BelowFloor,
		Stats:        res.Stats,
		Geocoded:     res.Geocoded,
	}
}

func writeJSONFile(path string, v any) error {
	w, err := createFile(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func createRunCmd() *cobra.Command {
	var (
		in, format, out, reportPath string
		geocode                     bool
		ef                          engineFlags
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Deduplicate a file and write the cleaned property table as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			recs, err := readInput(in, format)
			if err != nil {
				return err
			}
			log.Info().Int("records", len(recs)).Str("in", in).Msg("input loaded")

			var geo domain.Geocoder
			if geocode {
				g, closeGeo, err := newGeocoder()
				if err != nil {
					return err
				}
				defer closeGeo()
				geo = g
			}

			svc := app.NewCleaningService(nil, geo, ef.options(cmd), cfg.GeocodeWorkers)
			res, err := svc.Clean(ctx, recs, geocode)
			if err != nil {
				return err
			}

			w, err := createFile(out)
			if err != nil {
				return err
			}
			if err := tabular.WriteCSV(w, res.Cleaned); err != nil {
				w.Close()
				return err
			}
			if err := w.Close(); err != nil {
				return err
			}
			if reportPath != "" {
				if err := writeJSONFile(reportPath, newReport(res, len(recs))); err != nil {
					return err
				}
			}
			log.Info().
				Str("run_id", res.RunID).
				Int("input", len(recs)).
				Int("removed", len(res.Removed)).
				Int("kept", len(res.Cleaned)).
				Msg("run complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "-", "input file, - for stdin")
	cmd.Flags().StringVar(&format, "format", "", "csv, json or appraisals (default from extension)")
	cmd.Flags().StringVar(&out, "out", "-", "cleaned CSV output, - for stdout")
	cmd.Flags().StringVar(&reportPath, "report", "", "optional JSON report path")
	cmd.Flags().BoolVar(&geocode, "geocode", false, "fill missing coordinates through the geocoder first")
	ef.register(cmd)
	return cmd
}

func createLoadCmd() *cobra.Command {
	var in, format string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load input records into the properties table",
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := readInput(in, format)
			if err != nil {
				return err
			}
			if err := dedup.Validate(recs); err != nil {
				return err
			}
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			if err := mysqlrepo.New(db).UpsertProperties(cmd.Context(), recs); err != nil {
				return err
			}
			log.Info().Int("records", len(recs)).Msg("properties loaded")
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "-", "input file, - for stdin")
	cmd.Flags().StringVar(&format, "format", "", "csv, json or appraisals (default from extension)")
	return cmd
}

func createCleanDBCmd() *cobra.Command {
	var (
		reportPath string
		geocode    bool
		ef         engineFlags
	)
	cmd := &cobra.Command{
		Use:   "clean-db",
		Short: "Deduplicate the properties table into properties_deduplicated",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			var geo domain.Geocoder
			if geocode {
				g, closeGeo, err := newGeocoder()
				if err != nil {
					return err
				}
				defer closeGeo()
				geo = g
			}
			svc := app.NewCleaningService(mysqlrepo.New(db), geo, ef.options(cmd), cfg.GeocodeWorkers)
			res, err := svc.CleanStored(ctx, geocode)
			if err != nil {
				return err
			}
			if reportPath != "" {
				return writeJSONFile(reportPath, newReport(res, len(res.Cleaned)+len(res.Removed)))
			}
			fmt.Println(res.RunID)
			return nil
		},
	}
	cmd.Flags().StringVar(&reportPath, "report", "", "optional JSON report path")
	cmd.Flags().BoolVar(&geocode, "geocode", false, "fill missing coordinates through the geocoder first")
	ef.register(cmd)
	return cmd
}

func createShowRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-run <id>",
		Short: "Print a stored run summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			run, err := mysqlrepo.New(db).GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSONFile("-", run)
		},
	}
}

func createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test database and cache connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			db, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Println("Database connection successful!")

			var count int
			if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM properties").Scan(&count); err != nil {
				log.Warn().Err(err).Msg("count properties failed")
			} else {
				fmt.Printf("Properties loaded: %d\n", count)
			}

			cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
			defer cache.Close()
			if err := cache.Ping(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			fmt.Println("Redis connection successful!")
			return nil
		},
	}
}
