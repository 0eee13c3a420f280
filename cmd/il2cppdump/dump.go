// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/saferwall/il2cpp"
	"github.com/saferwall/il2cpp/log"
	"github.com/spf13/cobra"
)

func prettyPrint(v interface{}) string {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<marshal error: %v>", err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, buf, "", "\t"); err != nil {
		return string(buf)
	}
	return pretty.String()
}

func loadMetadata(cmd *cobra.Command, args []string) (*il2cpp.Metadata, error) {
	logger := log.NewFilter(log.NewStdLogger(os.Stderr), log.FilterLevel(levelFromVerbose()))
	return il2cpp.ParseFiles(args[0], args[1], &il2cpp.Options{Logger: logger})
}

func levelFromVerbose() log.Level {
	if verbose {
		return log.LevelDebug
	}
	return log.LevelWarn
}

// dumpTypes prints the fully qualified name of every runtime type,
// mirroring pedumper.go's parsePE dump-one-structure-per-flag shape,
// collapsed to one structure per subcommand.
func dumpTypes(cmd *cobra.Command, args []string) error {
	m, err := loadMetadata(cmd, args)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(m.Runtime.MetadataRegistration.Types))
	for i := range m.Runtime.MetadataRegistration.Types {
		name, err := m.TypeFullName(int32(i))
		if err != nil {
			names = append(names, fmt.Sprintf("<error: %v>", err))
			continue
		}
		names = append(names, name)
	}
	fmt.Println(prettyPrint(names))
	return nil
}

// dumpMethods prints the full signature ("retType declType::name(params)",
// see Metadata.MethodSignature) of every method of every type definition.
func dumpMethods(cmd *cobra.Command, args []string) error {
	m, err := loadMetadata(cmd, args)
	if err != nil {
		return err
	}
	sigs := make([]string, 0)
	for ti, td := range m.Global.TypeDefinitions {
		methods := il2cpp.MethodsOf(m.Global, td)
		for _, row := range methods {
			sig, err := m.MethodSignature(il2cpp.TypeDefinitionIndex(ti), row)
			if err != nil {
				sigs = append(sigs, fmt.Sprintf("<error: %v>", err))
				continue
			}
			sigs = append(sigs, sig)
		}
	}
	fmt.Println(prettyPrint(sigs))
	return nil
}

// dumpModules prints each code-gen module's name and method-pointer
// count, the IL2CPP analogue of pedumper.go's --clr module-name dump.
func dumpModules(cmd *cobra.Command, args []string) error {
	m, err := loadMetadata(cmd, args)
	if err != nil {
		return err
	}
	type module struct {
		Name        string `json:"name"`
		MethodCount int    `json:"methodCount"`
	}
	mods := make([]module, 0, len(m.Runtime.CodeRegistration.Modules))
	for _, cgm := range m.Runtime.CodeRegistration.Modules {
		mods = append(mods, module{Name: cgm.Name, MethodCount: len(cgm.MethodPointers)})
	}
	fmt.Println(prettyPrint(mods))
	return nil
}
