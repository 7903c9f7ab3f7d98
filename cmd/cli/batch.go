package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/himanishpuri/IntroMatch/internal/batch"
	"github.com/himanishpuri/IntroMatch/internal/export"
	"github.com/himanishpuri/IntroMatch/pkg/intromatch"
	"github.com/himanishpuri/IntroMatch/pkg/logger"
	"github.com/himanishpuri/IntroMatch/pkg/models"
	"github.com/himanishpuri/IntroMatch/pkg/utils"
)

// BatchCmd analyzes every URL of a batch list against one pattern.
type BatchCmd struct {
	List    string `arg:"" type:"existingfile" help:"Batch list: URLs or TAB/comma rows of cms_id, external_cms_id, url, duration"`
	Pattern string `short:"p" required:"" help:"Pattern id"`
	CSV     string `name:"csv" type:"path" help:"Write a CSV update file into this directory"`
	XML     string `name:"xml" type:"path" help:"Write a Sophora XML update file into this directory"`
	CDN     string `name:"cdn" default:"${cdn}" help:"Base URL for list entries that are CMS paths"`
}

func (c *BatchCmd) Run(g *Globals) error {
	log := logger.GetLogger()

	f, err := os.Open(c.List)
	if err != nil {
		return err
	}
	list, err := (&batch.Parser{CDNBase: c.CDN}).Parse(f)
	f.Close()
	if err != nil {
		return err
	}

	entries := list.Items()
	if len(entries) == 0 {
		return fmt.Errorf("%s: no URLs found", c.List)
	}
	items := make([]intromatch.Item, len(entries))
	for i, e := range entries {
		items[i] = intromatch.Item{URL: e.URL, Meta: e.Meta}
	}

	svc, err := g.service()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	pattern, err := svc.GetPattern(c.Pattern)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println(TitleStyle.Render(fmt.Sprintf("Analyzing %d item(s) for %q", len(items), pattern.Name)))

	p := mpb.New(mpb.WithWidth(64))
	bar := p.AddBar(int64(len(items)),
		mpb.PrependDecorators(
			decor.Name("Analyzing: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.EwmaETA(decor.ET_STYLE_GO, 30),
		),
	)

	last := time.Now()
	rows, runErr := svc.AnalyzeBatch(ctx, pattern.ID, items, func(done, total int, row *models.Analysis) {
		bar.EwmaIncrement(time.Since(last))
		last = time.Now()
		if row.Failed() {
			log.Warnf("%s: %s", row.Source, row.Error)
		}
	})
	if runErr != nil {
		bar.Abort(false)
	}
	p.Wait()

	if runErr != nil && len(rows) == 0 {
		return runErr
	}

	matched, failed := 0, 0
	for i := range rows {
		switch {
		case rows[i].Failed():
			failed++
		case rows[i].Matched:
			matched++
		}
		printAnalysis(&rows[i])
	}

	now := time.Now()
	if c.CSV != "" {
		path, err := writeReport(c.CSV, export.UpdateFileName(pattern.Name, "csv", now), func(buf *bytes.Buffer) error {
			return export.WriteCSV(buf, rows)
		})
		if err != nil {
			return err
		}
		printField("CSV:", path)
	}
	if c.XML != "" {
		timings := map[string]models.ReferenceTiming{pattern.Name: pattern.Timing}
		path, err := writeReport(c.XML, export.UpdateFileName(pattern.Name, "xml", now), func(buf *bytes.Buffer) error {
			return export.WriteXML(buf, rows, timings)
		})
		if err != nil {
			return err
		}
		printField("XML:", path)
	}

	printField("Processed:", fmt.Sprintf("%d of %d", len(rows), len(items)))
	printField("Matched:", fmt.Sprint(matched))
	printField("Failed:", fmt.Sprint(failed))

	if runErr != nil {
		return fmt.Errorf("batch stopped early: %w", runErr)
	}
	return nil
}

// writeReport renders a report into dir/name atomically.
func writeReport(dir, name string, render func(*bytes.Buffer) error) (string, error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return "", err
	}
	if err := utils.MakeDir(dir); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := utils.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
