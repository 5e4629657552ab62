package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const (
	detailNoMolecules   = "no molecules found"
	detailNoMatches     = "No matches found"
	detailEmptyRegistry = "No molecules available for search"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <identifier>",
		Short: "Show one molecule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cl, err := commandContext(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			m, err := cl.Molecules().Get(ctx, args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, moleculeOutput(*m))
		},
	}
}

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <identifier> <smiles>",
		Short: "Register a molecule",
		Example: `  molctl add ethanol CCO
  molctl add benzene 'c1ccccc1'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cl, err := commandContext(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			m, err := cl.Molecules().Add(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return PrintResult(cmd, moleculeOutput(*m))
		},
	}
}

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <identifier> <smiles>",
		Short: "Replace the notation of a registered molecule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cl, err := commandContext(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			m, err := cl.Molecules().Update(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return PrintResult(cmd, moleculeOutput(*m))
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <identifier>",
		Aliases: []string{"rm"},
		Short:   "Remove a molecule",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cl, err := commandContext(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			detail, err := cl.Molecules().Delete(ctx, args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, detailOutput{Detail: detail})
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List every molecule in registration order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cl, err := commandContext(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			mols, err := cl.Molecules().List(ctx)
			if err != nil {
				return err
			}
			if len(mols) == 0 {
				return PrintResult(cmd, detailOutput{Detail: detailNoMolecules})
			}
			return PrintResult(cmd, moleculeList(mols))
		},
	}
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <substructure>",
		Short: "Find molecules containing a substructure",
		Long: "search returns every registered molecule whose structure contains the given\n" +
			"SMILES pattern, in registration order.",
		Example: `  molctl search CO
  molctl search 'c1ccccc1' -o table`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cl, err := commandContext(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			res, err := cl.Molecules().Search(ctx, args[0])
			if err != nil {
				return err
			}
			switch {
			case res.RegistryEmpty:
				return PrintResult(cmd, detailOutput{Detail: detailEmptyRegistry})
			case len(res.Matches) == 0:
				return PrintResult(cmd, detailOutput{Detail: detailNoMatches})
			}
			return PrintResult(cmd, moleculeList(res.Matches))
		},
	}
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Bulk-load a file of identifier:SMILES lines",
		Long: "upload sends a text file with one identifier:SMILES entry per line.  The batch\n" +
			"is all-or-nothing: a malformed line rejects the whole file.  Identifiers that\n" +
			"already exist are skipped.  Use - to read from stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cl, err := commandContext(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			name, r, closeFn, err := openUpload(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := cl.Molecules().Upload(ctx, name, r)
			if err != nil {
				return err
			}
			return PrintResult(cmd, uploadOutput(*res))
		},
	}
}

func openUpload(cmd *cobra.Command, path string) (string, io.Reader, func(), error) {
	if path == "-" {
		return "stdin.txt", cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", nil, nil, err
	}
	return filepath.Base(path), f, func() { _ = f.Close() }, nil
}

