package sealcfg_test

import (
	"fmt"
	"log"

	"github.com/systmms/sealcfg/pkg/keys"
	"github.com/systmms/sealcfg/pkg/keystore"
	"github.com/systmms/sealcfg/pkg/sealcfg"
)

type editorState struct {
	OpenFiles []string
}

func (editorState) Default() editorState { return editorState{} }

func ExampleRun() {
	err := sealcfg.Run(func(c *sealcfg.Config) error {
		if err := sealcfg.Update(c, func(s *editorState) error {
			s.OpenFiles = append(s.OpenFiles, "main.go")
			return nil
		}); err != nil {
			return err
		}

		s, err := sealcfg.Get[editorState](c)
		if err != nil {
			return err
		}
		fmt.Println(s.OpenFiles)
		return nil
	}, sealcfg.WithSecretStore(keystore.NewMemory()))
	if err != nil {
		log.Fatal(err)
	}
	// Output: [main.go]
}

func ExampleUpgradeWith() {
	c := sealcfg.New(sealcfg.WithKeyManager(keys.NewManager(keystore.NewMemory())))
	defer c.Close()

	patch, err := sealcfg.UpgradeWith(c, "github.com/systmms/sealcfg/pkg/sealcfg_test.editorState",
		func(cur editorState) (editorState, error) {
			cur.OpenFiles = []string{"README.md"}
			return cur, nil
		})
	if err != nil {
		log.Fatal(err)
	}
	if err := patch.Apply(c); err != nil {
		log.Fatal(err)
	}

	s, _ := sealcfg.Get[editorState](c)
	fmt.Println(s.OpenFiles)
	// Output: [README.md]
}
