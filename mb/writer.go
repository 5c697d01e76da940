package mb

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/eak1mov/go-anviltiles/tile"
)

// Writer implements tile.Writer interface for MBTiles format.
type Writer struct {
	db     *sql.DB
	stmt   *sql.Stmt
	logger *slog.Logger
}

type writerConfig struct {
	Metadata map[string]string
	Logger   *slog.Logger
}

type WriterOption func(*writerConfig)

func WithMetadata(metadata map[string]string) WriterOption {
	return func(c *writerConfig) { c.Metadata = metadata }
}

func WithLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.Logger = logger }
}

// NewWriter creates a new Writer for writing to a MBTiles file.
// It applies given options and initializes database for writing tiles.
// The metadata always records `scheme=xyz`; caller metadata may add to
// but not unset it.
func NewWriter(filePath string, opts ...WriterOption) (*Writer, error) {
	config := writerConfig{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	var err error
	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// The unique index exists from the start so rewriting a tile
	// upserts instead of accumulating duplicate rows.
	_, err = db.Exec(`
		CREATE TABLE metadata (name TEXT, value TEXT);
		CREATE TABLE tiles (
			zoom_level INTEGER,
			tile_column INTEGER,
			tile_row INTEGER,
			tile_data BLOB
		);
		CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row);
	`)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{"scheme": "xyz"}
	for k, v := range config.Metadata {
		metadata[k] = v
	}
	metadata["scheme"] = "xyz"
	for k, v := range metadata {
		_, err = db.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", k, v)
		if err != nil {
			return nil, err
		}
	}

	stmt, err := db.Prepare("INSERT OR REPLACE INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return nil, err
	}

	return &Writer{db, stmt, config.Logger}, nil
}

func (w *Writer) Close() error {
	return errors.Join(w.stmt.Close(), w.db.Close())
}

// WriteTile stores a tile. Rewriting a tile replaces the earlier row.
func (w *Writer) WriteTile(tileID tile.ID, tileData []byte) error {
	_, err := w.stmt.Exec(tileID.Z, tileID.X, tileID.Y, tileData)
	return err
}

func (w *Writer) Finalize() error {
	w.logger.Debug("anviltiles: analyzing tile index")
	_, err := w.db.Exec("ANALYZE")

	// TODO(eak1mov): run VACUUM?
	// _, err = w.db.Exec("VACUUM")

	w.logger.Debug("anviltiles: done!")
	return err
}
