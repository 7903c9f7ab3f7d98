package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/himanishpuri/IntroMatch/internal/batch"
	"github.com/himanishpuri/IntroMatch/internal/media"
	"github.com/himanishpuri/IntroMatch/pkg/intromatch"
	"github.com/himanishpuri/IntroMatch/pkg/logger"
	"github.com/himanishpuri/IntroMatch/pkg/models"
	"github.com/himanishpuri/IntroMatch/pkg/utils"
)

// PatternCmd groups the pattern management commands.
type PatternCmd struct {
	Create PatternCreateCmd `cmd:"" help:"Cut an intro out of a reference file and store it"`
	List   PatternListCmd   `cmd:"" help:"List stored patterns"`
	Show   PatternShowCmd   `cmd:"" help:"Show one pattern"`
	Export PatternExportCmd `cmd:"" help:"Write a pattern to a JSON file"`
	Import PatternImportCmd `cmd:"" help:"Load a pattern from a JSON file"`
	Delete PatternDeleteCmd `cmd:"" help:"Delete a pattern"`
}

type PatternCreateCmd struct {
	Media string `arg:"" help:"Reference media file or URL"`
	Start string `required:"" help:"Intro start (seconds, m:ss or h:mm:ss)"`
	End   string `required:"" help:"Intro end (seconds, m:ss or h:mm:ss)"`
	Outro string `help:"Distance from the outro start to the end of the file"`
	Name  string `help:"Pattern name (default: title tag, then file name)"`
}

func (c *PatternCreateCmd) Run(g *Globals) error {
	log := logger.GetLogger()

	start, err := parseTimeArg("start", c.Start)
	if err != nil {
		return err
	}
	end, err := parseTimeArg("end", c.End)
	if err != nil {
		return err
	}
	req := intromatch.PatternRequest{Name: c.Name, IntroStartS: start, IntroEndS: end}
	if c.Outro != "" {
		outro, err := parseTimeArg("outro", c.Outro)
		if err != nil {
			return err
		}
		req.OutroDurationS = &outro
	}

	svc, err := g.service()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	src, err := loadSource(ctx, c.Media)
	if err != nil {
		return err
	}

	fmt.Println(TitleStyle.Render("Creating pattern from " + src.Name))
	p, err := svc.CreatePattern(ctx, src, req)
	if err != nil {
		log.Errorf("CreatePattern failed: %v", err)
		return fmt.Errorf("failed to create pattern: %w", err)
	}

	fmt.Println(MatchStyle.Render("Pattern stored"))
	printPattern(p)
	return nil
}

type PatternListCmd struct{}

func (c *PatternListCmd) Run(g *Globals) error {
	svc, err := g.service()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	patterns, err := svc.ListPatterns()
	if err != nil {
		return fmt.Errorf("failed to list patterns: %w", err)
	}
	if len(patterns) == 0 {
		fmt.Println("No patterns stored")
		return nil
	}

	fmt.Println(TitleStyle.Render(fmt.Sprintf("%d pattern(s)", len(patterns))))
	for i, p := range patterns {
		fmt.Printf("%d. %s %s\n", i+1, ValueStyle.Render(p.Name), KeyStyle.Render(p.ID))
		printField("Intro:", fmt.Sprintf("%.2fs, %d frames", p.IntroDurationS, p.FrameCount))
		if p.OutroDurationS != nil {
			printField("Outro:", batch.FormatMMSS(*p.OutroDurationS))
		}
		printField("Created:", p.CreatedAt.Local().Format("2006-01-02 15:04"))
		fmt.Println()
	}
	return nil
}

type PatternShowCmd struct {
	ID string `arg:"" help:"Pattern id"`
}

func (c *PatternShowCmd) Run(g *Globals) error {
	svc, err := g.service()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	p, err := svc.GetPattern(c.ID)
	if err != nil {
		return err
	}
	printPattern(p)
	return nil
}

type PatternExportCmd struct {
	ID  string `arg:"" help:"Pattern id"`
	Out string `short:"o" type:"path" default:"." help:"Output directory"`
}

func (c *PatternExportCmd) Run(g *Globals) error {
	svc, err := g.service()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	data, name, err := svc.ExportPattern(c.ID)
	if err != nil {
		return err
	}
	if err := utils.MakeDir(c.Out); err != nil {
		return err
	}
	path := filepath.Join(c.Out, name)
	if err := utils.WriteFileAtomic(path, data); err != nil {
		return err
	}
	fmt.Println(MatchStyle.Render("Exported"))
	printField("File:", path)
	return nil
}

type PatternImportCmd struct {
	File string `arg:"" type:"existingfile" help:"Pattern JSON file"`
}

func (c *PatternImportCmd) Run(g *Globals) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}

	svc, err := g.service()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	p, err := svc.ImportPattern(data)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", c.File, err)
	}
	fmt.Println(MatchStyle.Render("Imported"))
	printPattern(p)
	return nil
}

type PatternDeleteCmd struct {
	ID string `arg:"" help:"Pattern id"`
}

func (c *PatternDeleteCmd) Run(g *Globals) error {
	svc, err := g.service()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	p, err := svc.GetPattern(c.ID)
	if err != nil {
		return err
	}
	if err := svc.DeletePattern(c.ID); err != nil {
		return fmt.Errorf("failed to delete pattern: %w", err)
	}
	fmt.Println(MatchStyle.Render("Deleted"))
	printField("ID:", p.ID)
	printField("Name:", p.Name)
	logger.GetLogger().Infof("Deleted pattern %s (%q)", p.ID, p.Name)
	return nil
}

// AnalyzeCmd matches one pattern against individual files or URLs.
type AnalyzeCmd struct {
	Pattern string   `short:"p" required:"" help:"Pattern id"`
	Files   []string `arg:"" name:"files" help:"Media files or URLs"`
	Meta    string   `type:"existingfile" help:"Batch list supplying cms ids and durations"`
	JSON    bool     `name:"json" help:"Print rows as JSON"`
}

func (c *AnalyzeCmd) Run(g *Globals) error {
	var meta *batch.List
	if c.Meta != "" {
		f, err := os.Open(c.Meta)
		if err != nil {
			return err
		}
		meta, err = batch.Parse(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	svc, err := g.service()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	rows := make([]models.Analysis, 0, len(c.Files))
	for _, ref := range c.Files {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		row, err := analyzeOne(ctx, svc, c.Pattern, ref, meta)
		cancel()
		if err != nil {
			if intromatch.IsNotFound(err) {
				return err
			}
			PrintError(fmt.Sprintf("%s: %v", ref, err))
			continue
		}
		rows = append(rows, *row)
		if !c.JSON {
			printAnalysis(row)
		}
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	return nil
}

func analyzeOne(ctx context.Context, svc intromatch.Service, patternID, ref string, meta *batch.List) (*models.Analysis, error) {
	item := intromatch.Item{}
	if utils.IsHTTPURL(ref) {
		item.URL = ref
	} else {
		src, err := media.LoadFile(ref)
		if err != nil {
			return nil, err
		}
		item.Source = src
	}
	if m, ok := meta.Lookup(ref); ok {
		item.Meta = m
	}
	return svc.Analyze(ctx, patternID, item)
}

// loadSource reads a local file or downloads a whole URL.
func loadSource(ctx context.Context, ref string) (media.Source, error) {
	if utils.IsHTTPURL(ref) {
		return media.NewFetcher().FetchFull(ctx, ref)
	}
	return media.LoadFile(ref)
}

func parseTimeArg(name, raw string) (float64, error) {
	v, ok := batch.ParseTime(raw)
	if !ok {
		return 0, fmt.Errorf("--%s: cannot parse %q (use seconds, m:ss or h:mm:ss)", name, raw)
	}
	return v, nil
}

func printPattern(p *models.Pattern) {
	printField("ID:", p.ID)
	printField("Name:", p.Name)
	printField("Intro:", fmt.Sprintf("%.2fs to %.2fs (%.2fs)", p.Timing.IntroStartS, p.Timing.IntroEndS, p.Timing.IntroDurationS))
	if p.Timing.OutroDurationS != nil {
		printField("Outro:", fmt.Sprintf("%.2fs before end", *p.Timing.OutroDurationS))
	}
	printField("Features:", fmt.Sprintf("%s, %d frames @ %d Hz, hop %d", p.FeatureConfig.FeatureType, p.Payload.FrameCount, p.FeatureConfig.SampleRate, p.FeatureConfig.Hop))
	printField("Created:", p.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if p.ImportedAt != nil {
		printField("Imported:", p.ImportedAt.Local().Format("2006-01-02 15:04:05"))
	}
}

func printAnalysis(a *models.Analysis) {
	switch {
	case a.Failed():
		fmt.Printf("%s %s\n", ErrorStyle.Render("FAILED"), a.Source)
		printField("Error:", a.Error)
	case a.Matched:
		fmt.Printf("%s %s\n", MatchStyle.Render("MATCH "), a.Source)
		printField("Intro start:", batch.FormatMMSS(*a.IntroStartS)+fmt.Sprintf(" (%.2fs)", *a.IntroStartS))
		printField("Confidence:", fmt.Sprintf("%.2f", a.Confidence))
		if a.Score != nil {
			printField("Distance:", fmt.Sprintf("%.4f", *a.Score))
		}
	default:
		fmt.Printf("%s %s\n", KeyStyle.Render("NO MATCH"), a.Source)
	}
	if !a.Failed() {
		if a.DurationS != nil {
			printField("Duration:", batch.FormatHHMMSS(*a.DurationS))
		}
		if a.OutroStartS != nil {
			printField("Outro start:", batch.FormatMMSS(*a.OutroStartS))
		}
	}
	fmt.Println()
}
