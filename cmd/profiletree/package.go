package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gofhir/profiletree"
	"github.com/gofhir/profiletree/loader"
	pkgloader "github.com/gofhir/profiletree/pkg/loader"
	"github.com/gofhir/profiletree/worker"
)

var (
	packageCache string
	packageList  bool
	packageCore  bool
)

func newPackageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "package <name#version|dir|file.tgz>",
		Short: "Check every StructureDefinition of a FHIR package",
		Long: `Load a FHIR NPM package from the local package cache, an unpacked package
directory or a .tgz file, and check every StructureDefinition it contains.

The package's own extension definitions are used to classify extension
elements. Packages are never downloaded.`,
		Example: `  profiletree package hl7.fhir.us.core#6.1.0
  profiletree package --cache /tmp/packages hl7.fhir.r4.core#4.0.1
  profiletree package --core hl7.fhir.us.core#6.1.0
  profiletree package ./my-ig/output/package.tgz
  profiletree package --list`,
		Args: func(cmd *cobra.Command, args []string) error {
			if packageList {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			l := pkgloader.NewLoader(packageCache)
			out := cmd.OutOrStdout()

			if packageList {
				pkgs, err := l.ListPackages()
				if err != nil {
					return fmt.Errorf("listing %s: %w", l.BasePath(), err)
				}
				if jsonOut {
					return printJSON(out, pkgs)
				}
				for _, p := range pkgs {
					fmt.Fprintln(out, p)
				}
				return nil
			}

			pkg, err := loadPackage(cmd, l, args[0])
			if err != nil {
				return err
			}
			printVerbose(cmd.ErrOrStderr(), "Loaded %s#%s (%d resources)\n", pkg.Name, pkg.Version, len(pkg.Resources))
			fhirVersion := profiletree.R4
			if pkg.FHIRVersion != "" {
				v, ok := profiletree.ParseFHIRVersion(pkg.FHIRVersion)
				if !ok || !v.IsSupported() {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s#%s targets FHIR %s; definitions are read as R4\n",
						pkg.Name, pkg.Version, pkg.FHIRVersion)
				} else {
					fhirVersion = v
				}
			}

			e, err := newEngine(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			docs := pkg.StructureDefinitions()
			var core map[string][]byte
			if packageCore {
				corePkg, err := l.LoadPackage(cmd.Context(), pkgloader.ParsePackageSpec(fhirVersion.CorePackage()))
				if err != nil {
					return fmt.Errorf("loading core package: %w", err)
				}
				core = corePkg.StructureDefinitions()
			}
			store, err := packageStore(docs, core)
			if err != nil {
				return err
			}
			e.SetExtensionResolver(store)

			urls := make([]string, 0, len(docs))
			for url := range docs {
				urls = append(urls, url)
			}
			sort.Strings(urls)

			jobs := make([]worker.Job, len(urls))
			for i, url := range urls {
				jobs[i] = worker.Job{Name: url, Data: docs[url]}
			}

			batch, err := worker.NewBatchProcessor(e, e.Options().WorkerCount).ProcessBatch(cmd.Context(), jobs)
			if err != nil {
				return err
			}
			if merr := writeMetrics(e); merr != nil {
				return merr
			}

			reports := make([]resourceReport, len(batch.Results))
			for i, jr := range batch.Results {
				reports[i] = newReport(urls[i], jr.Result, jr.Events.Events(), jr.Error)
			}

			if jsonOut {
				if perr := printJSON(out, map[string]any{
					"package":   pkg.Name,
					"version":   pkg.Version,
					"resources": reports,
					"duration":  batch.TotalDuration.String(),
				}); perr != nil {
					return perr
				}
			} else {
				fmt.Fprintf(out, "Package: %s#%s\n\n", pkg.Name, pkg.Version)
				for _, r := range reports {
					printReport(out, r)
				}
				printSummary(out, reports)
			}

			if !allOK(reports) {
				return errFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&packageCache, "cache", pkgloader.DefaultPackagePath(), "FHIR package cache directory")
	cmd.Flags().BoolVar(&packageList, "list", false, "List the packages in the cache")
	cmd.Flags().BoolVar(&packageCore, "core", false, "Also resolve extensions against the core package in the cache")
	return cmd
}

// loadPackage loads arg as a .tgz file, an unpacked directory or a cache reference.
func loadPackage(cmd *cobra.Command, l *pkgloader.Loader, arg string) (*pkgloader.Package, error) {
	if strings.HasSuffix(arg, ".tgz") || strings.HasSuffix(arg, ".tar.gz") {
		return l.LoadFromTgz(arg)
	}
	if info, err := os.Stat(arg); err == nil && info.IsDir() {
		return l.LoadDir(cmd.Context(), arg)
	}
	return l.LoadPackage(cmd.Context(), pkgloader.ParsePackageSpec(arg))
}

// packageStore indexes the definitions of a package, of its core package when loaded,
// and of the --extensions directories. Definitions that fail to parse are skipped;
// those of the package are reported again when checked.
func packageStore(docs, core map[string][]byte) (*loader.Store, error) {
	store := loader.NewStore()
	_, _ = store.LoadResources(core)
	_, _ = store.LoadResources(docs)
	for _, dir := range extensions {
		if _, err := store.LoadFromDirectory(dir); err != nil {
			return nil, fmt.Errorf("loading extensions from %s: %w", dir, err)
		}
	}
	return store, nil
}
