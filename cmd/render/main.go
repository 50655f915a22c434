// Command render turns a single form configuration file into a standalone
// booking page without touching the database or any deploy target.
package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"yoyaku/internal/config"
	"yoyaku/internal/document"
	"yoyaku/internal/formconfig"
	"yoyaku/internal/menuexport"
)

func main() {
	formPath := flag.String("form", "", "form configuration file (.json, .yaml or .yml)")
	outPath := flag.String("out", "", "output HTML file (default: <form id>.html)")
	busy := flag.String("busy", "", "comma-separated busy slots, e.g. \"2025-01-10 14:00,2025-01-10 14:30\"")
	xlsxPath := flag.String("xlsx", "", "also write the menu price list to this .xlsx file")
	flag.Parse()

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	if *formPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	ff, err := config.LoadFormFile(*formPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load form file")
	}
	in, err := formconfig.Parse(ff.Data)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse form config")
	}
	for _, p := range in.Problems {
		logger.Warn().Str("form_id", ff.ID).Msg(p)
	}
	cfg := formconfig.Normalize(in)

	page, err := document.Assemble(&cfg, splitSlots(*busy))
	if err != nil {
		logger.Fatal().Err(err).Msg("render form")
	}

	out := *outPath
	if out == "" {
		out = filepath.Join(filepath.Dir(*formPath), ff.ID+".html")
	}
	if err := os.WriteFile(out, page, 0o644); err != nil {
		logger.Fatal().Err(err).Msg("write page")
	}
	logger.Info().Str("form_id", ff.ID).Str("out", out).Int("bytes", len(page)).Msg("Form rendered")

	if *xlsxPath == "" {
		return
	}
	f, err := os.Create(*xlsxPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("create price list")
	}
	defer f.Close()
	if err := menuexport.Export(&cfg, f); err != nil {
		logger.Fatal().Err(err).Msg("export price list")
	}
	logger.Info().Str("out", *xlsxPath).Msg("Price list exported")
}

func splitSlots(s string) []string {
	slots := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			slots = append(slots, part)
		}
	}
	return slots
}
