package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var (
	createName     string
	createAddrs    string
	createAutoAddr bool
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Manage vCider virtual networks",
	Long:  "List, inspect, create and modify virtual networks, and attach nodes to them.",
}

var networkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all networks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}

		nets, err := client.GetAllNetworks(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to list networks")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tADDRESSES\tNODES")
		for id, net := range nets {
			name, _ := net.Name(ctx)
			addrs, _ := net.NetAddresses(ctx)
			numNodes, _ := net.NumNodes(ctx)
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", id, name, addrs, numNodes)
		}
		return w.Flush()
	},
}

var networkDescribeCmd = &cobra.Command{
	Use:   "describe <network-id>",
	Short: "Show detailed info for a network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}

		net, err := client.GetNetwork(ctx, args[0])
		if err != nil {
			return errors.Wrapf(err, "failed to fetch network %s", args[0])
		}

		out := cmd.OutOrStdout()
		name, _ := net.Name(ctx)
		addrs, _ := net.NetAddresses(ctx)
		autoAddr, _ := net.AutoAddr(ctx)
		encrypted, _ := net.Encrypted(ctx)
		tags, _ := net.Tags(ctx)
		numNodes, _ := net.NumNodes(ctx)
		statusMsg, _ := net.StatusMsg(ctx)

		fmt.Fprintf(out, "URI:        %s\n", net.URI())
		fmt.Fprintf(out, "Name:       %s\n", name)
		fmt.Fprintf(out, "Addresses:  %s\n", addrs)
		fmt.Fprintf(out, "Auto addr:  %t\n", autoAddr)
		fmt.Fprintf(out, "Encrypted:  %t\n", encrypted)
		fmt.Fprintf(out, "Tags:       %v\n", tags)
		fmt.Fprintf(out, "Nodes:      %d\n", numNodes)
		fmt.Fprintf(out, "Status:     %s\n", statusMsg)
		return nil
	},
}

var networkCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new network",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}

		net, err := client.CreateNetwork(ctx, createName, createAddrs, createAutoAddr)
		if err != nil {
			return errors.Wrap(err, "failed to create network")
		}

		id, err := net.ID(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created network %s at %s\n", id, net.URI())
		return nil
	},
}

var networkAddNodeCmd = &cobra.Command{
	Use:   "add-node <network-id> <node-id>",
	Short: "Add a node to a network",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}

		net, err := client.GetNetwork(ctx, args[0])
		if err != nil {
			return errors.Wrapf(err, "failed to fetch network %s", args[0])
		}
		port, err := net.AddNode(ctx, args[1])
		if err != nil {
			return errors.Wrapf(err, "failed to add node %s", args[1])
		}

		vaddr, _ := port.VciderVaddr(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "Added node %s to network %s (port %s, address %s)\n",
			args[1], args[0], port.URI(), vaddr)
		return nil
	},
}

var networkDeleteCmd = &cobra.Command{
	Use:   "delete <network-id>",
	Short: "Delete a network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}

		net, err := client.GetNetwork(ctx, args[0])
		if err != nil {
			return errors.Wrapf(err, "failed to fetch network %s", args[0])
		}
		if err := net.Delete(ctx); err != nil {
			return errors.Wrapf(err, "failed to delete network %s", args[0])
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted network %s\n", args[0])
		return nil
	},
}

func init() {
	networkCreateCmd.Flags().StringVar(&createName, "name", "", "network name")
	networkCreateCmd.Flags().StringVar(&createAddrs, "addresses", "", "address space in CIDR notation, e.g. 10.1.0.0/24")
	networkCreateCmd.Flags().BoolVar(&createAutoAddr, "auto-addr", true, "assign addresses to new nodes automatically")
	_ = networkCreateCmd.MarkFlagRequired("name")
	_ = networkCreateCmd.MarkFlagRequired("addresses")

	networkCmd.AddCommand(networkListCmd)
	networkCmd.AddCommand(networkDescribeCmd)
	networkCmd.AddCommand(networkCreateCmd)
	networkCmd.AddCommand(networkAddNodeCmd)
	networkCmd.AddCommand(networkDeleteCmd)
	rootCmd.AddCommand(networkCmd)
}
