package system

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	log "github.com/sirupsen/logrus"
)

// Info is a snapshot of the host the HAT is attached to.
type Info struct {
	Hostname    string
	Platform    string
	Arch        string
	CPUs        int
	CPUPercent  float64
	Load1       float64
	MemUsed     uint64
	MemTotal    uint64
	Temperature float64 // degrees Celsius, 0 when no sensor is exposed
}

// Probe gathers Info. CPU usage is sampled over interval; zero compares
// against the previous call. Missing metrics are left at zero.
func Probe(interval time.Duration) Info {
	var info Info

	if h, err := host.Info(); err == nil {
		info.Hostname = h.Hostname
		info.Platform = strings.TrimSpace(h.Platform + " " + h.PlatformVersion)
		info.Arch = h.KernelArch
	}
	if n, err := cpu.Counts(true); err == nil {
		info.CPUs = n
	}
	if p, err := cpu.Percent(interval, false); err == nil && len(p) > 0 {
		info.CPUPercent = p[0]
	}
	if l, err := load.Avg(); err == nil {
		info.Load1 = l.Load1
	}
	if m, err := mem.VirtualMemory(); err == nil {
		info.MemUsed, info.MemTotal = m.Used, m.Total
	}
	info.Temperature = cpuTemperature()
	return info
}

// cpuTemperature prefers the SoC sensor exposed by the Raspberry Pi kernel.
func cpuTemperature() float64 {
	temps, err := host.SensorsTemperatures()
	if err != nil && len(temps) == 0 {
		return 0
	}
	best := 0.0
	for _, t := range temps {
		key := strings.ToLower(t.SensorKey)
		if strings.Contains(key, "cpu") || strings.Contains(key, "soc") {
			return t.Temperature
		}
		if best == 0 {
			best = t.Temperature
		}
	}
	return best
}

// Fields renders the snapshot for structured logging.
func (i Info) Fields() log.Fields {
	f := log.Fields{
		"host":     i.Hostname,
		"platform": i.Platform,
		"arch":     i.Arch,
		"cpus":     i.CPUs,
		"cpu":      fmt.Sprintf("%.1f%%", i.CPUPercent),
		"load1":    i.Load1,
		"mem":      fmt.Sprintf("%d/%d MiB", i.MemUsed>>20, i.MemTotal>>20),
	}
	if i.Temperature > 0 {
		f["temp"] = fmt.Sprintf("%.1fC", i.Temperature)
	}
	return f
}

// Image extensions FindLatest looks for by default.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".pdf"}

// FindLatest returns the most recently modified file in dir whose extension
// is one of exts (case-insensitive).
func FindLatest(dir string, exts ...string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !hasExt(f.Name(), exts) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no %s files in %s", strings.Join(exts, "/"), dir)
	}
	return latestFile, nil
}

func hasExt(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// BestH264Encoder picks a hardware H.264 encoder known to ffmpeg, falling
// back to libx264.
func BestH264Encoder() string {
	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	for _, name := range []string{"h264_v4l2m2m", "h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(string(out), name) {
			return name
		}
	}
	return "libx264"
}
