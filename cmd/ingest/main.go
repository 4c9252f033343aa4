package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"starauto-backend/internal/application/images"
	"starauto-backend/internal/application/ingest"
	"starauto-backend/internal/pkg/logger"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type options struct {
	API     string
	Token   string
	Listing int64
	Create  string
	Files   []string
}

func main() {
	logger.Setup("ingest", os.Getenv("LOG_LEVEL"), "console", os.Stderr)

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Error().Err(err).Msg("ingest failed")
		os.Exit(1)
	}
}

// parseFlags binds flags into viper so INGEST_API / INGEST_TOKEN work too.
func parseFlags(args []string) (*options, error) {
	fs := pflag.NewFlagSet("ingest", pflag.ContinueOnError)
	fs.String("api", "http://localhost:8080", "inventory API base URL")
	fs.String("token", "", "admin access token")
	fs.Int64("listing", 0, "existing listing to attach photos to")
	fs.String("create", "", "JSON file with listing fields; creates the listing first")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("INGEST")
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	opts := &options{
		API:     strings.TrimRight(v.GetString("api"), "/"),
		Token:   v.GetString("token"),
		Listing: v.GetInt64("listing"),
		Create:  v.GetString("create"),
		Files:   fs.Args(),
	}
	switch {
	case opts.Token == "":
		return nil, errors.New("--token (or INGEST_TOKEN) is required")
	case (opts.Listing == 0) == (opts.Create == ""):
		return nil, errors.New("exactly one of --listing or --create is required")
	case opts.Listing != 0 && len(opts.Files) == 0:
		return nil, errors.New("no image files given")
	}
	return opts, nil
}

func run(ctx context.Context, opts *options, out io.Writer) error {
	files, err := readFiles(opts.Files)
	if err != nil {
		return err
	}

	client := &ingest.Client{BaseURL: opts.API, Token: opts.Token, HTTP: &http.Client{Timeout: 2 * time.Minute}}
	session := ingest.NewSession(client)

	var res *ingest.AddResult
	if opts.Create != "" {
		fields, err := readFields(opts.Create)
		if err != nil {
			return err
		}
		res, err = session.CreateWithPhotos(ctx, fields, files)
		if err != nil && res == nil {
			return err
		}
		if err != nil {
			id, _ := res.Listing.ID()
			fmt.Fprintf(out, "listing %d created without photos; re-run with --listing %d\n", id, id)
			return err
		}
	} else {
		res, err = session.AddPhotos(ctx, opts.Listing, files)
		if err != nil {
			return err
		}
	}
	return report(out, res)
}

func readFiles(paths []string) ([]images.Blob, error) {
	blobs := make([]images.Blob, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		// unknown extensions go out untyped; the normalizer sniffs the bytes
		ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(p)))
		blobs = append(blobs, images.Blob{Name: filepath.Base(p), ContentType: ct, Data: data})
	}
	return blobs, nil
}

func readFields(path string) (map[string]interface{}, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fields, nil
}

func report(out io.Writer, res *ingest.AddResult) error {
	id, _ := res.Listing.ID()
	fmt.Fprintf(out, "listing %d\n", id)
	keys := make([]string, 0, len(res.URLs))
	for k := range res.URLs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := images.ParseSlotKey(keys[i])
		b, _ := images.ParseSlotKey(keys[j])
		return a < b
	})
	for _, k := range keys {
		fmt.Fprintf(out, "  %-8s %s\n", k, res.URLs[k])
	}
	for _, k := range res.Failed {
		fmt.Fprintf(out, "  %-8s failed\n", k)
	}
	for name, reason := range res.Rejected {
		fmt.Fprintf(out, "  rejected %s: %s\n", name, reason)
	}
	return nil
}
