package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/chunker"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/document"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/parser"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/pipeline"
)

func newChunkCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "chunk FILE",
		Short: "Parse and chunk a file without indexing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			doc, data, err := parseFile(args[0])
			if err != nil {
				return err
			}
			doc.SetID(document.DocumentID(data))
			c := chunker.New(chunker.Config{
				MinChunkChars:   cfg.MinChunkChars,
				MaxChunkChars:   cfg.MaxChunkChars,
				SubjectKeywords: cfg.SubjectKeywords,
				EmphaticHeaders: cfg.EmphaticHeaders,
			}, opts.logger(cmd.ErrOrStderr()))
			chunks := c.Chunk(doc)
			if asJSON {
				return printJSON(cmd.OutOrStdout(), chunks)
			}
			out := cmd.OutOrStdout()
			for _, ch := range chunks {
				forced := ""
				if ch.BoundaryForced {
					forced = " forced"
				}
				fmt.Fprintf(out, "--- chunk %d (%d chars%s) ---\n%s\n", ch.Index, ch.CharCount, forced, ch.Text)
			}
			fmt.Fprintf(out, "%d lines, %d chunks\n", len(doc.Lines), len(chunks))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print chunks as JSON")
	return cmd
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var (
		docID string
		title string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Chunk, embed and index files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if docID != "" && len(args) > 1 {
				return fmt.Errorf("--doc-id can only be used with a single file")
			}
			a, err := opts.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			failed := 0
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				id := docID
				if id == "" {
					id = document.DocumentID(data)
				}
				job := pipeline.NewJob(id, filepath.Base(path), title, force, data)
				a.Worker.Process(cmd.Context(), job)
				snap := job.Snapshot()
				if snap.Status == pipeline.StatusFailed {
					failed++
				}
				if err := printJSON(cmd.OutOrStdout(), snap); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&docID, "doc-id", "", "document id (defaults to a content hash)")
	cmd.Flags().StringVar(&title, "title", "", "document title (defaults to the file name)")
	cmd.Flags().BoolVar(&force, "force", false, "re-index even when identical content exists")
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search QUERY",
		Short: "Show the reranked grounding set for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			gs, err := a.Pipeline.Retrieve(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), gs)
		},
	}
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Answer a question from indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ans, err := a.Answerer.Answer(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), ans)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ans.Text)
			for _, src := range ans.Sources {
				fmt.Fprintf(out, "\n[Source %d] %s (score %.3f)\n", src.CitationIndex, src.Chunk.DocumentID, src.RerankScore)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full answer as JSON")
	return cmd
}

func newDocumentsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List ingested documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			docs, err := a.Store.ListDocuments(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), docs)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete DOC_ID",
		Short: "Remove a document from the index and chunk store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Worker.DeleteDocument(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func parseFile(path string) (*document.Document, []byte, error) {
	p, err := parser.ForFile(path)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	doc, err := p.Parse(bytes.NewReader(data), filepath.Base(path))
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, data, nil
}
