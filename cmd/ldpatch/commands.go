package main

import (
	"fmt"

	"github.com/c360studio/ldpatch/jsonld"
	"github.com/c360studio/ldpatch/ldpatch"
	"github.com/c360studio/ldpatch/patch"
	"github.com/spf13/cobra"
)

// shapeFlags are the shaping inputs shared by apply, diff, project and watch.
type shapeFlags struct {
	frame   string
	context string
	format  string
}

func (f *shapeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.frame, "frame", "", "Frame file (JSON or YAML)")
	cmd.Flags().StringVar(&f.context, "context", "", "Extra @context file merged into the processor options")
	cmd.Flags().StringVar(&f.format, "format", "", "Canonical serialization format (default from config)")
}

// options reads the frame and context files and combines them with the
// configured processor defaults.
func (f *shapeFlags) options(c *cli) (ldpatch.ShapeOptions, error) {
	frame, err := readOptionalDocument(f.frame)
	if err != nil {
		return ldpatch.ShapeOptions{}, err
	}
	extra, err := readContext(f.context)
	if err != nil {
		return ldpatch.ShapeOptions{}, err
	}
	if f.format != "" {
		if _, err := jsonld.ResolveFormat(f.format); err != nil {
			return ldpatch.ShapeOptions{}, err
		}
	}
	return ldpatch.ShapeOptions{
		Frame:   frame,
		Context: extra,
		Format:  f.format,
		JSONLD:  c.cfg.ProcessorOptions(),
	}, nil
}

func (c *cli) applyCmd() *cobra.Command {
	var (
		document  string
		patchPath string
		shape     shapeFlags
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a JSON Patch to the projection of a document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(document)
			if err != nil {
				return err
			}
			p, err := readPatch(patchPath)
			if err != nil {
				return err
			}
			opts, err := shape.options(c)
			if err != nil {
				return err
			}
			patcher, err := c.newPatcher()
			if err != nil {
				return err
			}

			result, err := patcher.ApplyPatch(cmd.Context(), ldpatch.ApplyRequest{
				Document:     doc,
				Patch:        p,
				ShapeOptions: opts,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&document, "document", "", "Document file (JSON or YAML, - for stdin)")
	cmd.Flags().StringVar(&patchPath, "patch", "", "Patch file (JSON or YAML)")
	shape.register(cmd)
	_ = cmd.MarkFlagRequired("document")
	_ = cmd.MarkFlagRequired("patch")
	return cmd
}

func (c *cli) diffCmd() *cobra.Command {
	var (
		from  string
		to    string
		shape shapeFlags
	)

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Print the patch that turns one document's projection into another's",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := readDocument(from)
			if err != nil {
				return err
			}
			b, err := readDocument(to)
			if err != nil {
				return err
			}
			opts, err := shape.options(c)
			if err != nil {
				return err
			}
			patcher, err := c.newPatcher()
			if err != nil {
				return err
			}

			p, err := patcher.Diff(cmd.Context(), a, b, opts)
			if err != nil {
				return err
			}
			if p == nil {
				p = patch.Patch{}
			}
			return writeJSON(cmd.OutOrStdout(), p)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Source document file")
	cmd.Flags().StringVar(&to, "to", "", "Target document file")
	shape.register(cmd)
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (c *cli) projectCmd() *cobra.Command {
	var (
		document string
		globs    []string
		shape    shapeFlags
	)

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Print the framed projection of one or more documents",
		Long: `Project canonicalizes each document and reshapes it with the frame.

With --glob, every matching file is projected and the output is an object
keyed by file path. Patterns support ** for recursive matches.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if document == "" && len(globs) == 0 {
				return fmt.Errorf("one of --document or --glob is required")
			}
			if document != "" && len(globs) > 0 {
				return fmt.Errorf("--document and --glob are mutually exclusive")
			}
			opts, err := shape.options(c)
			if err != nil {
				return err
			}
			patcher, err := c.newPatcher()
			if err != nil {
				return err
			}

			if document != "" {
				doc, err := readDocument(document)
				if err != nil {
					return err
				}
				result, err := patcher.Project(cmd.Context(), doc, opts)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result)
			}

			files, err := expandGlobs(globs)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no files match %v", globs)
			}
			results := make(map[string]any, len(files))
			for _, file := range files {
				doc, err := readDocument(file)
				if err != nil {
					return err
				}
				result, err := patcher.Project(cmd.Context(), doc, opts)
				if err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
				results[file] = result
			}
			c.logger.Info("Projected documents", "count", len(files))
			return writeJSON(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().StringVar(&document, "document", "", "Document file (JSON or YAML, - for stdin)")
	cmd.Flags().StringArrayVar(&globs, "glob", nil, "File pattern to project (repeatable)")
	shape.register(cmd)
	return cmd
}

func contextsCmd() *cobra.Command {
	var show bool

	cmd := &cobra.Command{
		Use:   "contexts",
		Short: "List the bundled JSON-LD contexts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if show {
				return writeJSON(cmd.OutOrStdout(), jsonld.Contexts())
			}
			for _, url := range jsonld.ContextURLs() {
				fmt.Fprintln(cmd.OutOrStdout(), url)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&show, "show", false, "Print context documents keyed by URL")
	return cmd
}
