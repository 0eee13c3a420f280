// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

func main() {
	var rootCmd = &cobra.Command{
		Use:   "il2cppdump",
		Short: "A Unity IL2CPP metadata reader",
		Long:  "Reads global-metadata.dat and its companion IL2CPP ELF shared object, built for reverse-engineering by Saferwall",
		Run: func(cmd *cobra.Command, args []string) {
		},
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Long:  "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print("You are using version 0.0.1")
		},
	}

	var dumpCmd = &cobra.Command{
		Use:   "dump <global-metadata.dat> <libil2cpp.so>",
		Short: "Dumps the parsed metadata graph",
		Long:  "Dumps the tables and types of an IL2CPP global-metadata.dat/ELF pair",
		Args:  cobra.ExactArgs(2),
	}

	var typesCmd = &cobra.Command{
		Use:   "types <global-metadata.dat> <libil2cpp.so>",
		Short: "Dumps runtime type full names",
		Args:  cobra.ExactArgs(2),
		RunE:  dumpTypes,
	}

	var methodsCmd = &cobra.Command{
		Use:   "methods <global-metadata.dat> <libil2cpp.so>",
		Short: "Dumps method signatures grouped by declaring type",
		Args:  cobra.ExactArgs(2),
		RunE:  dumpMethods,
	}

	var modulesCmd = &cobra.Command{
		Use:   "modules <global-metadata.dat> <libil2cpp.so>",
		Short: "Dumps code-gen modules (assembly image names and sizes)",
		Args:  cobra.ExactArgs(2),
		RunE:  dumpModules,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	dumpCmd.AddCommand(typesCmd, methodsCmd, modulesCmd)
	rootCmd.AddCommand(versionCmd, dumpCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
