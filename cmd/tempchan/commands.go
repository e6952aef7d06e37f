package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/loykin/tempchan/pkg/client"
	"github.com/spf13/cobra"
)

// apiFlags holds the daemon connection flags shared by every non-serve
// command.
type apiFlags struct {
	URL     string
	Timeout time.Duration
}

func (f *apiFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.URL, "api-url", client.DefaultConfig().BaseURL, "daemon API base URL")
	cmd.Flags().DurationVar(&f.Timeout, "api-timeout", client.DefaultConfig().Timeout, "API request timeout")
}

func (f *apiFlags) client() *client.Client {
	return client.New(client.Config{BaseURL: f.URL, Timeout: f.Timeout})
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func newSlotsCmd() *cobra.Command {
	var f apiFlags
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List tracked slots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			slots, err := f.client().Slots(cmd.Context())
			if err != nil {
				return err
			}
			printJSON(slots)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newGroupsCmd() *cobra.Command {
	var f apiFlags
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List configured groups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			groups, err := f.client().Groups(cmd.Context())
			if err != nil {
				return err
			}
			printJSON(groups)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newPendingCmd() *cobra.Command {
	var f apiFlags
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List outstanding pick requests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reqs, err := f.client().Pending(cmd.Context())
			if err != nil {
				return err
			}
			printJSON(reqs)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newAllocateCmd() *cobra.Command {
	var f apiFlags
	var group, member, name string
	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Allocate a slot in a group",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if group == "" {
				return fmt.Errorf("--group is required")
			}
			s, err := f.client().Allocate(cmd.Context(), client.AllocateRequest{
				GroupID:  group,
				MemberID: member,
				Name:     name,
			})
			if err != nil {
				return err
			}
			printJSON(s)
			return nil
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "group id")
	cmd.Flags().StringVar(&member, "member", "", "member id to move into the slot")
	cmd.Flags().StringVar(&name, "name", "", "specific preset name (default: first free)")
	f.register(cmd)
	return cmd
}

func newPickCmd() *cobra.Command {
	var f apiFlags
	var member, name string
	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Complete a pending pick with a chosen preset name",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if member == "" || name == "" {
				return fmt.Errorf("--member and --name are required")
			}
			s, err := f.client().Pick(cmd.Context(), client.PickRequest{MemberID: member, Name: name})
			if err != nil {
				return err
			}
			printJSON(s)
			return nil
		},
	}
	cmd.Flags().StringVar(&member, "member", "", "member id with a pending request")
	cmd.Flags().StringVar(&name, "name", "", "chosen preset name")
	f.register(cmd)
	return cmd
}

func newEvictCmd() *cobra.Command {
	var f apiFlags
	var slotID string
	cmd := &cobra.Command{
		Use:   "evict",
		Short: "Evict an empty slot by id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if slotID == "" {
				return fmt.Errorf("--slot is required")
			}
			if err := f.client().Evict(cmd.Context(), slotID); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&slotID, "slot", "", "slot id")
	f.register(cmd)
	return cmd
}
