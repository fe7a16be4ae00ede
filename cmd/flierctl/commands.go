package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"flierbuilder/internal/flier"
	"flierbuilder/internal/render"
)

const maxLocalPhotoBytes = 5 << 20

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check that a flier file has every required field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd.Context(), logger(cmd), args[0])
			if err != nil {
				return err
			}
			if err := flier.Validate(doc); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			return nil
		},
	}
}

func newFilenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filename FILE",
		Short: "Print the name the editor would save the flier under",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd.Context(), logger(cmd), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), flier.Filename(doc))
			return nil
		},
	}
}

func newRenderCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "render FILE",
		Short: "Render the standalone flier page",
		Long: `Render the standalone flier page. Local photo paths are read relative
to the flier file and embedded in the page.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger(cmd)
			doc, err := readDocument(cmd.Context(), log, args[0])
			if err != nil {
				return err
			}
			renderer, err := render.New(log)
			if err != nil {
				return err
			}
			layout := renderer.Build(cmd.Context(), doc, localPhotos(filepath.Dir(args[0])))
			var buf bytes.Buffer
			if err := renderer.Page(&buf, layout); err != nil {
				return err
			}
			return writeOutput(cmd, output, buf.Bytes())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the page to this file instead of stdout")
	return cmd
}

func newLegacyCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "legacy FILE",
		Short: "Convert a legacy text flier to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			doc, errs := flier.ParseLegacy(string(data))
			for _, err := range errs {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			encoded, err := flier.Marshal(doc)
			if err != nil {
				return err
			}
			return writeOutput(cmd, output, encoded)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the JSON to this file instead of stdout")
	return cmd
}

// localPhotos embeds photos found next to the flier file as data URIs.
func localPhotos(dir string) render.PhotoResolver {
	return render.PhotoResolverFunc(func(_ context.Context, path string) (string, error) {
		local := filepath.FromSlash(path)
		if !filepath.IsLocal(local) {
			return "", fmt.Errorf("%w: %q is outside the flier directory", render.ErrPhotoUnavailable, path)
		}
		data, err := os.ReadFile(filepath.Join(dir, local))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("%w: %v", render.ErrPhotoUnavailable, err)
			}
			return "", err
		}
		if len(data) > maxLocalPhotoBytes {
			return "", fmt.Errorf("%w: %q is too large", render.ErrPhotoUnavailable, path)
		}
		contentType := http.DetectContentType(data)
		if !strings.HasPrefix(contentType, "image/") {
			return "", fmt.Errorf("%w: %q is %s", render.ErrPhotoUnavailable, path, contentType)
		}
		return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data)), nil
	})
}
