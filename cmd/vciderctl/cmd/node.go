package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	vcider "github.com/vcider/go-vcider"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage vCider nodes",
	Long:  "List and inspect the nodes known to the vCider controller.",
}

var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all nodes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}

		nodes, err := client.GetAllNodes(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to list nodes")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS")
		for id, node := range nodes {
			name, _ := node.Name(ctx)
			status, _ := node.StatusMsg(ctx)
			fmt.Fprintf(w, "%s\t%s\t%s\n", id, name, status)
		}
		return w.Flush()
	},
}

var nodeDescribeCmd = &cobra.Command{
	Use:   "describe <node-id>",
	Short: "Show detailed info for a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}

		node, err := client.GetNode(ctx, args[0])
		if err != nil {
			return errors.Wrapf(err, "failed to fetch node %s", args[0])
		}

		printNode(ctx, cmd, node)
		return nil
	},
}

var nodeNetworksCmd = &cobra.Command{
	Use:   "networks <node-id>",
	Short: "List the networks a node is a member of",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}

		node, err := client.GetNode(ctx, args[0])
		if err != nil {
			return errors.Wrapf(err, "failed to fetch node %s", args[0])
		}
		nets, err := node.GetAllNetworks(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to list node networks")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME")
		for id, net := range nets {
			name, _ := net.Name(ctx)
			fmt.Fprintf(w, "%s\t%s\n", id, name)
		}
		return w.Flush()
	},
}

func printNode(ctx context.Context, cmd *cobra.Command, node *vcider.Node) {
	out := cmd.OutOrStdout()

	name, _ := node.Name(ctx)
	os, _ := node.OS(ctx)
	swVersion, _ := node.SWVersion(ctx)
	tags, _ := node.Tags(ctx)
	lastSeen, _ := node.LastSeen(ctx)
	numNetworks, _ := node.NumNetworks(ctx)
	statusMsg, _ := node.StatusMsg(ctx)

	fmt.Fprintf(out, "URI:         %s\n", node.URI())
	fmt.Fprintf(out, "Name:        %s\n", name)
	fmt.Fprintf(out, "OS:          %s\n", os)
	fmt.Fprintf(out, "SW version:  %s\n", swVersion)
	fmt.Fprintf(out, "Tags:        %v\n", tags)
	fmt.Fprintf(out, "Last seen:   %s\n", lastSeen)
	fmt.Fprintf(out, "Networks:    %d\n", numNetworks)
	fmt.Fprintf(out, "Status:      %s\n", statusMsg)
}

func init() {
	nodeCmd.AddCommand(nodeListCmd)
	nodeCmd.AddCommand(nodeDescribeCmd)
	nodeCmd.AddCommand(nodeNetworksCmd)
	rootCmd.AddCommand(nodeCmd)
}
