// Package handlers exposes produced export artifacts over HTTP so results can
// be browsed and downloaded without spreadsheet tooling on the machine that
// ran the pipeline.
package handlers

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

type artifact struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Format   string    `json:"format"`
	Href     string    `json:"href"`
}

func isExportFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".json", ".xlsx":
		return true
	default:
		return false
	}
}

// ExportsIndexHandler lists the export artifacts in dir, newest first.
func ExportsIndexHandler(dir string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Error reading output directory")
		}

		artifacts := make([]artifact, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() || !isExportFile(e.Name()) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			artifacts = append(artifacts, artifact{
				Name:     e.Name(),
				Size:     info.Size(),
				Modified: info.ModTime(),
				Format:   strings.TrimPrefix(filepath.Ext(e.Name()), "."),
				Href:     "/exports/" + e.Name(),
			})
		}
		sort.Slice(artifacts, func(i, j int) bool {
			return artifacts[i].Modified.After(artifacts[j].Modified)
		})

		return c.JSON(fiber.Map{
			"directory": dir,
			"count":     len(artifacts),
			"exports":   artifacts,
		})
	}
}

// ExportDownloadHandler serves one artifact by file name.
func ExportDownloadHandler(dir string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := filepath.Base(c.Params("name"))
		if name == "." || name == "/" || !isExportFile(name) {
			return c.Status(fiber.StatusBadRequest).SendString("Invalid export name")
		}
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			return c.Status(fiber.StatusNotFound).SendString("Export not found")
		}
		return c.SendFile(path)
	}
}
