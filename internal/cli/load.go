package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oncomatch/oncomatch/internal/store"
)

// LoadResult summarizes a document load.
type LoadResult struct {
	Collection string `json:"collection"`
	Loaded     int    `json:"loaded"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath, collection, idField string

	cmd := &cobra.Command{
		Use:   "load <documents.yaml|documents.json>",
		Short: "Load documents into a collection",
		Long: `Load a YAML or JSON array of documents into one store collection.

Each document's identifier comes from the field named by --id-field;
documents without one are keyed by their position in the file.
Reloading a file is an upsert, not an error.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, cmd, args[0], dbPath, collection, idField)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "oncomatch.db", "store database path")
	cmd.Flags().StringVar(&collection, "collection", "", "target collection (required)")
	cmd.Flags().StringVar(&idField, "id-field", "_id", "document field holding the identifier")
	_ = cmd.MarkFlagRequired("collection")

	return cmd
}

func runLoad(opts *RootOptions, cmd *cobra.Command, path, dbPath, collection, idField string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	docs, err := readDocuments(path, idField)
	if err != nil {
		_ = formatter.Error("LOAD_FAILED", err.Error(), nil)
		return WrapExitError(ExitCommandError, "load documents", err)
	}
	formatter.VerboseLog("Read %d document(s) from %s", len(docs), path)

	s, err := store.Open(dbPath)
	if err != nil {
		_ = formatter.Error("STORE_OPEN_FAILED", err.Error(), nil)
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer s.Close()

	if err := s.InsertMany(cmd.Context(), collection, docs); err != nil {
		_ = formatter.Error("STORE_WRITE_FAILED", err.Error(), nil)
		return WrapExitError(ExitCommandError, "insert documents", err)
	}

	result := LoadResult{Collection: collection, Loaded: len(docs)}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "loaded %d document(s) into %s\n", result.Loaded, result.Collection)
	return nil
}

// readDocuments decodes a YAML or JSON array of objects into store
// documents. YAML decodes through an interface round-trip so nested
// maps come out JSON-shaped (map[string]any).
func readDocuments(path, idField string) ([]store.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var raw []map[string]any
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	docs := make([]store.Document, 0, len(raw))
	for i, fields := range raw {
		id := documentID(fields, idField)
		if id == "" {
			id = strconv.Itoa(i)
		}
		docs = append(docs, store.Document{ID: id, Fields: fields})
	}
	return docs, nil
}

func documentID(fields map[string]any, idField string) string {
	v, ok := fields[idField]
	if !ok {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case int:
		return strconv.Itoa(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", id)
	}
}
