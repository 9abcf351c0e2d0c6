package bulk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/openworkouts/openworkouts-go/internal/database"
	"github.com/openworkouts/openworkouts-go/internal/storage"
	"github.com/openworkouts/openworkouts-go/internal/workout"
)

// Importer walks a drop directory and ingests every workout file it
// finds into the catalog. Files stay in place after a run; the
// (owner, hash) index makes re-running over the same directory a
// no-op apart from duplicate counts.
type Importer struct {
	db        *database.DB
	store     *storage.Store
	importDir string
}

func NewImporter(db *database.DB, store *storage.Store, importDir string) *Importer {
	return &Importer{
		db:        db,
		store:     store,
		importDir: importDir,
	}
}

// Report summarizes a single import run.
type Report struct {
	Scanned    int
	Imported   int
	Duplicates int
	Skipped    int
	Failed     int
}

// Run ingests every recognized file under the import directory for the
// given owner. A failure on one file does not stop the run; the file
// is counted in the report and the walk continues.
func (i *Importer) Run(ctx context.Context, ownerID string) (*Report, error) {
	startTime := time.Now()
	fmt.Printf("Starting import from %s at %s\n", i.importDir, startTime.Format(time.RFC3339))
	defer func() {
		fmt.Printf("Import completed in %s\n", time.Since(startTime))
	}()

	report := &Report{}

	err := filepath.WalkDir(i.importDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		report.Scanned++
		switch err := i.importFile(ownerID, path); {
		case errors.Is(err, database.ErrDuplicateWorkout):
			report.Duplicates++
		case errors.Is(err, workout.ErrUnknownFileType), errors.Is(err, errEmptyFile):
			report.Skipped++
		case err != nil:
			fmt.Printf("Error importing %s: %v\n", path, err)
			report.Failed++
		default:
			report.Imported++
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("failed to walk import directory: %w", err)
	}

	fmt.Printf("Imported %d of %d files (%d duplicates, %d skipped, %d failed)\n",
		report.Imported, report.Scanned, report.Duplicates, report.Skipped, report.Failed)
	return report, nil
}

var errEmptyFile = errors.New("file contains no track data")

func (i *Importer) importFile(ownerID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	filetype, err := workout.DetectFileType(data)
	if err != nil {
		return err
	}

	blob, err := i.store.Save(data, string(filetype))
	if err != nil {
		return fmt.Errorf("failed to save upload: %w", err)
	}

	w := workout.New()
	w.TrackingFile = blob
	w.TrackingFiletype = filetype

	// anything not committed by the time we return was a dead end
	defer func() {
		blob.Discard()
		w.TrackingFile.Discard()
		if w.FitFile != nil {
			w.FitFile.Discard()
		}
	}()

	loaded, err := w.LoadFromFile(i.store)
	if err != nil {
		return fmt.Errorf("failed to load workout: %w", err)
	}
	if !loaded {
		return errEmptyFile
	}

	// the catalog insert is the dedupe gate; blobs become durable only
	// once the row is in, so duplicates leave nothing behind
	if err := i.db.InsertWorkout(database.NewRecord(ownerID, w)); err != nil {
		return err
	}

	if err := w.TrackingFile.Commit(); err != nil {
		return fmt.Errorf("failed to commit tracking file: %w", err)
	}
	if w.FitFile != nil {
		if err := w.FitFile.Commit(); err != nil {
			return fmt.Errorf("failed to commit fit file: %w", err)
		}
	}
	return nil
}
