package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloudpeers/tlfs/causal"
	"github.com/cloudpeers/tlfs/crdtpath"
	"github.com/cloudpeers/tlfs/schema"
	"github.com/cloudpeers/tlfs/sdk"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the two-replica todo-list walkthrough",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd)
		},
	}
}

func todoListRegistry() *schema.Registry {
	item := schema.Struct(map[string]*schema.Node{
		"title": schema.MVReg(schema.TypeStr),
		"done":  schema.EWFlag(),
	})
	root := schema.Struct(map[string]*schema.Node{
		"title": schema.MVReg(schema.TypeStr),
		"tasks": schema.Array(item),
	})
	registry := schema.NewRegistry()
	registry.Register("todolist", schema.Version{Root: root})
	return registry
}

func runDemo(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	registry := todoListRegistry()

	alice, err := sdk.CreateMemory(registry)
	if err != nil {
		return fmt.Errorf("create alice: %w", err)
	}
	bob, err := sdk.CreateMemory(registry)
	if err != nil {
		return fmt.Errorf("create bob: %w", err)
	}

	aliceDoc, err := alice.CreateDoc("todolist")
	if err != nil {
		return fmt.Errorf("alice create doc: %w", err)
	}
	fmt.Fprintf(out, "alice created document %s\n", aliceDoc.ID())

	root := aliceDoc.CreateCursor()
	title, err := root.StructField("title")
	if err != nil {
		return err
	}
	delta, err := title.RegAssign(crdtpath.PrimStrV("Ship the sync engine"))
	if err != nil {
		return fmt.Errorf("alice set title: %w", err)
	}
	if err := aliceDoc.ApplyCausal(delta); err != nil {
		return err
	}

	grant, err := root.SayCan(crdtpath.PeerActor(bob.PeerID()), crdtpath.PermWrite)
	if err != nil {
		return fmt.Errorf("alice grant bob write: %w", err)
	}
	if err := aliceDoc.ApplyCausal(grant); err != nil {
		return err
	}
	fmt.Fprintf(out, "alice granted %s write access\n", bob.PeerID())

	genesis := aliceDoc.Unjoin(causal.NewContext())
	bobDoc, err := bob.AddDoc(aliceDoc.ID(), "todolist", genesis)
	if err != nil {
		return fmt.Errorf("bob add doc: %w", err)
	}
	fmt.Fprintln(out, "bob adopted the document from alice's genesis delta")

	bobRoot := bobDoc.CreateCursor()
	bobTasks, err := bobRoot.StructField("tasks")
	if err != nil {
		return err
	}
	firstTask, err := bobTasks.ArrayInsert(0)
	if err != nil {
		return err
	}
	firstTitle, err := firstTask.StructField("title")
	if err != nil {
		return err
	}
	taskDelta, err := firstTitle.RegAssign(crdtpath.PrimStrV("Write the array cursor tests"))
	if err != nil {
		return fmt.Errorf("bob add task: %w", err)
	}
	if err := bobDoc.ApplyCausal(taskDelta); err != nil {
		return err
	}
	fmt.Fprintln(out, "bob added a task")

	missingAtAlice := bobDoc.Unjoin(aliceDoc.CausalContext())
	if err := aliceDoc.ApplyCausal(missingAtAlice); err != nil {
		return fmt.Errorf("alice sync from bob: %w", err)
	}

	aliceTasks, err := root.StructField("tasks")
	if err != nil {
		return err
	}
	n, err := aliceTasks.ArrayLength()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "alice now sees %d task(s) after syncing from bob\n", n)
	for i := 0; i < n; i++ {
		el, err := aliceTasks.ArrayIndex(i)
		if err != nil {
			return err
		}
		elTitle, err := el.StructField("title")
		if err != nil {
			return err
		}
		values, err := elTitle.RegValues()
		if err != nil {
			return err
		}
		for _, v := range values {
			fmt.Fprintf(out, "  task %d: %s\n", i, v.S)
		}
	}
	return nil
}
