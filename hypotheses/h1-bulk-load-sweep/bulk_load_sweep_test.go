package h1

// H1 Bulk-Load Sweep
//
// Hypothesis: on the qos triangle, strict priority keeps the EF (VoIP) mean
// delay within 5 ms of the bottleneck propagation delay for any BE (FTP)
// offered load, while a single drop-tail FIFO lets it grow with the BE
// backlog once the bottleneck is oversubscribed.
//
// Method:
//   For each FTP rate in {1, 2, 4, 8} Mbps and each queue kind in
//   {prio, fifo}, run the qos preset with the bottleneck queue replaced and
//   record the VoIP and FTP group reports.
//
// Set QOSSIM_H1_OUT to a directory to also write h1_results.csv there.

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qos-sim/qos-sim/sim/flowmon"
	"github.com/qos-sim/qos-sim/sim/scenario"
)

type h1Point struct {
	Queue   string
	FTPMbps int64
	VoIP    flowmon.GroupReport
	FTP     flowmon.GroupReport
}

func runH1(t *testing.T, queue string, ftpMbps int64) h1Point {
	t.Helper()
	cfg, err := scenario.Preset("qos")
	require.NoError(t, err)

	for i := range cfg.Links {
		if cfg.Links[i].Name != "bottleneck" {
			continue
		}
		cfg.Links[i].Capture = false
		cfg.Links[i].Queue = scenario.QueueConfig{Kind: queue, BandCapacity: 100}
		if queue == "prio" {
			cfg.Links[i].Queue.Bands = 3
		}
	}
	for i := range cfg.Applications {
		if cfg.Applications[i].Name == "ftp" {
			cfg.Applications[i].Rate = scenario.DataRate(ftpMbps * 1_000_000)
		}
	}

	sc, err := scenario.Build(cfg, scenario.Options{})
	require.NoError(t, err)
	res, err := sc.Run()
	require.NoError(t, err)
	require.NotNil(t, res.Report)

	p := h1Point{Queue: queue, FTPMbps: ftpMbps}
	var ok bool
	p.VoIP, ok = res.Report.Group("voip")
	require.True(t, ok)
	p.FTP, ok = res.Report.Group("ftp")
	require.True(t, ok)
	return p
}

func TestH1_BulkLoadSweep(t *testing.T) {
	if testing.Short() {
		t.Skip("sweep runs eight full scenarios")
	}
	var points []h1Point
	for _, queue := range []string{"prio", "fifo"} {
		for _, rate := range []int64{1, 2, 4, 8} {
			p := runH1(t, queue, rate)
			t.Logf("%-4s ftp=%dMbps voip delay=%.2fms loss=%.2f%% | ftp delay=%.2fms loss=%.2f%% thr=%.2fMbps",
				queue, rate, p.VoIP.AvgDelayMs, p.VoIP.LossPercent, p.FTP.AvgDelayMs, p.FTP.LossPercent, p.FTP.ThroughputMbps)
			points = append(points, p)
		}
	}

	for _, p := range points {
		name := fmt.Sprintf("%s/%dMbps", p.Queue, p.FTPMbps)
		switch {
		case p.Queue == "prio":
			assert.Less(t, p.VoIP.AvgDelayMs, 15.0, name)
			assert.Zero(t, p.VoIP.LossPercent, name)
		case p.FTPMbps >= 4:
			// 2.28 Mbps of VoIP plus the FTP wire rate exceeds 5 Mbps: the
			// shared FIFO stays near full and VoIP waits behind FTP.
			assert.Greater(t, p.VoIP.AvgDelayMs, 50.0, name)
		default:
			assert.Less(t, p.VoIP.AvgDelayMs, 15.0, name)
		}
	}

	if dir := os.Getenv("QOSSIM_H1_OUT"); dir != "" {
		require.NoError(t, writeH1CSV(filepath.Join(dir, "h1_results.csv"), points))
	}
}

func writeH1CSV(path string, points []h1Point) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	_ = w.Write([]string{"queue", "ftp_mbps", "voip_delay_ms", "voip_jitter_ms", "voip_loss_pct", "ftp_delay_ms", "ftp_loss_pct", "ftp_throughput_mbps"})
	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }
	for _, p := range points {
		_ = w.Write([]string{
			p.Queue, strconv.FormatInt(p.FTPMbps, 10),
			ff(p.VoIP.AvgDelayMs), ff(p.VoIP.AvgJitterMs), ff(p.VoIP.LossPercent),
			ff(p.FTP.AvgDelayMs), ff(p.FTP.LossPercent), ff(p.FTP.ThroughputMbps),
		})
	}
	w.Flush()
	return w.Error()
}
