package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"

	"diabuddy/internal/retrieval"
)

const (
	chunkSize    = 1000
	chunkOverlap = 200
	upsertBatch  = 64
)

// Ingestor turns a directory of source documents into embedded chunks in the
// knowledge-base collection.
type Ingestor struct {
	loader   *file.FileLoader
	splitter document.Transformer
	writer   *retrieval.Writer
}

func New(ctx context.Context, writer *retrieval.Writer) (*Ingestor, error) {
	extParser, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("create parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      extParser,
	})
	if err != nil {
		return nil, fmt.Errorf("create file loader: %w", err)
	}
	splitter, err := recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   chunkSize,
		OverlapSize: chunkOverlap,
	})
	if err != nil {
		return nil, fmt.Errorf("create splitter: %w", err)
	}
	return &Ingestor{loader: loader, splitter: splitter, writer: writer}, nil
}

// IngestDir loads every regular file under root, splits the text into
// overlapping chunks and upserts them. It returns the number of files read
// and chunks written.
func (i *Ingestor) IngestDir(ctx context.Context, root string) (int, int, error) {
	var docs []*schema.Document
	files := 0

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			return nil
		}

		loaded, err := i.loader.Load(ctx, document.Source{URI: path})
		if err != nil {
			log.Printf("skip %s: %v", path, err)
			return nil
		}

		source := path
		if rel, relErr := filepath.Rel(root, path); relErr == nil {
			source = rel
		}
		for _, doc := range loaded {
			if strings.TrimSpace(doc.Content) == "" {
				continue
			}
			if doc.MetaData == nil {
				doc.MetaData = map[string]any{}
			}
			doc.MetaData["source"] = source
			docs = append(docs, doc)
		}
		files++
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("walk %s: %w", root, err)
	}
	if len(docs) == 0 {
		return files, 0, nil
	}

	chunks, err := i.splitter.Transform(ctx, docs)
	if err != nil {
		return files, 0, fmt.Errorf("split documents: %w", err)
	}

	written := 0
	for start := 0; start < len(chunks); start += upsertBatch {
		end := start + upsertBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		n, err := i.writer.Upsert(ctx, chunks[start:end])
		if err != nil {
			return files, written, err
		}
		written += n
	}
	return files, written, nil
}
