package integration

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/accesstrail/accesstrail/internal/config"
	"github.com/accesstrail/accesstrail/internal/pipeline"
)

func runOnce(t *testing.T, cfg *config.Config) *pipeline.Summary {
	t.Helper()
	ctx := context.Background()
	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		t.Fatalf("pipeline.New failed: %v", err)
	}
	defer p.Close()

	summary, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("pipeline.Run failed: %v", err)
	}
	return summary
}

func freshConfig(t *testing.T, input string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Input.Path = input
	return cfg
}

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "access.log")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}
	return path
}

func readArtifact(t *testing.T, cfg *config.Config, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.Output.Dir, name, "part-00000"))
	if err != nil {
		t.Fatalf("failed to read %s artifact: %v", name, err)
	}
	return string(data)
}

const mixedLog = `10.0.0.1,2024-03-01T09:00:01,/index,200,Mozilla
10.0.0.1,2024-03-01T09:00:30,/index,200,Mozilla
10.0.0.2,2024-03-01T09:00:59,/login,200,curl
10.0.0.2,2024-03-01T09:01:02,/admin,404,curl
10.0.0.2,2024-03-01T09:01:10,/admin,404,curl
10.0.0.2,2024-03-01T09:01:20,/admin,404,curl
10.0.0.2,2024-03-01T09:01:44,/admin,500,curl
10.0.0.3,2024-03-01T09:02:00,/index,200,Mozilla
this line is not parseable
10.0.0.3,2024-03-01T09:02:10,/about,404,Mozilla
`

func TestPipeline_AllReports(t *testing.T) {
	cfg := freshConfig(t, writeLog(t, mixedLog))
	summary := runOnce(t, cfg)

	if summary.Records != 9 || summary.Rejected != 1 {
		t.Fatalf("summary = %+v, want 9 records, 1 rejected", summary)
	}

	if got := readArtifact(t, cfg, "total_requests"); got != "Total Requests: 9\n" {
		t.Errorf("total_requests = %q", got)
	}

	if got := readArtifact(t, cfg, "status_distribution"); got != "200 4\n404 4\n500 1\n" {
		t.Errorf("status_distribution = %q", got)
	}

	if got := readArtifact(t, cfg, "top_pages"); got != "/admin 3\n/index 3\n/about 1\n" {
		t.Errorf("top_pages = %q", got)
	}

	if got := readArtifact(t, cfg, "traffic_sources"); got != "curl 5\nMozilla 4\n" {
		t.Errorf("traffic_sources = %q", got)
	}

	// 10.0.0.2 has 3x404 + 1x500 = 4 failures; 10.0.0.3 has only 1
	if got := readArtifact(t, cfg, "suspicious_ips"); got != "10.0.0.2 4\n" {
		t.Errorf("suspicious_ips = %q", got)
	}

	want := "2024-03-01T09:00 3\n2024-03-01T09:01 4\n2024-03-01T09:02 2\n"
	if got := readArtifact(t, cfg, "traffic_trends"); got != want {
		t.Errorf("traffic_trends = %q, want %q", got, want)
	}

	detail := readArtifact(t, cfg, "status_404_detail")
	lines := strings.Split(strings.TrimRight(detail, "\n"), "\n")
	if len(lines) != 4 {
		t.Errorf("status_404_detail = %q, want 4 rows", detail)
	}
	if !strings.HasPrefix(lines[0], "10.0.0.2 2024-03-01T09:01:02 /admin 404") {
		t.Errorf("first detail row = %q", lines[0])
	}
}

// The distribution must sum to the total, and the 404 detail row count must
// match the 404 distribution row.
func TestPipeline_CrossReportConsistency(t *testing.T) {
	cfg := freshConfig(t, writeLog(t, mixedLog))
	runOnce(t, cfg)

	var sum, count404 int
	for _, line := range strings.Split(strings.TrimRight(readArtifact(t, cfg, "status_distribution"), "\n"), "\n") {
		fields := strings.Fields(line)
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			t.Fatalf("bad distribution line %q", line)
		}
		sum += n
		if fields[0] == "404" {
			count404 = n
		}
	}

	total := strings.Fields(readArtifact(t, cfg, "total_requests"))
	if total[len(total)-1] != strconv.Itoa(sum) {
		t.Errorf("sum(distribution) = %d, total = %v", sum, total)
	}

	detailRows := strings.Count(readArtifact(t, cfg, "status_404_detail"), "\n")
	if detailRows != count404 {
		t.Errorf("detail rows = %d, distribution 404 = %d", detailRows, count404)
	}
}

// Two runs over the same input must produce byte-identical artifacts for
// every report.
func TestPipeline_Idempotence(t *testing.T) {
	input := writeLog(t, mixedLog)

	cfg1 := freshConfig(t, input)
	runOnce(t, cfg1)
	cfg2 := freshConfig(t, input)
	runOnce(t, cfg2)

	names := []string{
		"total_requests", "status_distribution", "top_pages",
		"traffic_sources", "suspicious_ips", "traffic_trends", "status_404_detail",
	}
	for _, name := range names {
		a := readArtifact(t, cfg1, name)
		b := readArtifact(t, cfg2, name)
		if a != b {
			t.Errorf("report %s differs between runs:\n%q\n%q", name, a, b)
		}
	}
}

func TestPipeline_JSONInput(t *testing.T) {
	content := `{"ip":"10.0.0.1","timestamp":"2024-03-01T09:00:01","url":"/index","status":200,"user_agent":"Mozilla"}
{"ip":"10.0.0.1","timestamp":"2024-03-01T09:00:02","url":"/index","status":404,"user_agent":"Mozilla"}
`
	path := filepath.Join(t.TempDir(), "access.jsonl")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}

	cfg := freshConfig(t, path)
	cfg.Input.Format = config.FormatJSON
	summary := runOnce(t, cfg)

	if summary.Records != 2 || summary.Rejected != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if got := readArtifact(t, cfg, "total_requests"); got != "Total Requests: 2\n" {
		t.Errorf("total_requests = %q", got)
	}
}

func TestPipeline_ZstdOutput(t *testing.T) {
	cfg := freshConfig(t, writeLog(t, mixedLog))
	cfg.Output.Compression = config.CompressionZstd
	summary := runOnce(t, cfg)

	if summary.Failed() {
		t.Fatalf("reports failed: %+v", summary.Reports)
	}
	for _, rep := range summary.Reports {
		if !strings.HasSuffix(rep.Artifact, ".zst") {
			t.Errorf("artifact %q should carry .zst suffix", rep.Artifact)
		}
		if _, err := os.Stat(rep.Artifact); err != nil {
			t.Errorf("artifact %q missing: %v", rep.Artifact, err)
		}
	}
}
