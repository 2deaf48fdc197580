package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/potooio/ondeath/internal/api"
)

// StatusResult is the result of a status command.
type StatusResult api.StatusResponse

// SubscribersResult is the result of the subscriber commands.
type SubscribersResult api.SubscribersResponse

// outputResult outputs the result in the specified format.
func outputResult(result interface{}, format string) error {
	switch format {
	case "json":
		return outputJSON(result)
	case "yaml":
		return outputYAML(result)
	default:
		return outputTable(result)
	}
}

func outputJSON(result interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputYAML(result interface{}) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func outputTable(result interface{}) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	switch r := result.(type) {
	case StatusResult:
		return outputStatusTable(w, r)
	case SubscribersResult:
		return outputSubscribersTable(w, r)
	default:
		// Fall back to JSON for unknown types
		return outputJSON(result)
	}
}

func outputStatusTable(w *tabwriter.Writer, r StatusResult) error {
	c := r.Correlator
	lastCycle := "never"
	if !c.LastCycle.IsZero() {
		lastCycle = c.LastCycle.Format(time.RFC3339)
	}

	fmt.Fprintf(w, "LAST CYCLE:\t%s\n", lastCycle)
	fmt.Fprintf(w, "CYCLES:\t%d\n", c.Cycles)
	fmt.Fprintf(w, "REJECTED:\t%d\n", c.Rejected)
	fmt.Fprintf(w, "FETCH ERRORS:\t%d\n", c.FetchErrors)
	fmt.Fprintf(w, "SKIPPED:\t%d\n", c.Skipped)
	fmt.Fprintf(w, "EVENTS:\t%d\n", c.Events)
	fmt.Fprintf(w, "TRACKED PAWNS:\t%d\n", c.TrackedPawns)
	fmt.Fprintf(w, "TRACKED CONTROLLERS:\t%d\n", c.TrackedControllers)
	if c.LastRejection != "" {
		fmt.Fprintf(w, "LAST REJECTION:\t%s\n", c.LastRejection)
	}

	fmt.Fprintf(w, "\nSUBSCRIBERS:\t%d\n", len(r.Subscribers))
	for i, name := range r.Subscribers {
		fmt.Fprintf(w, "%d.\t%s\n", i+1, name)
	}

	if len(r.Players) > 0 {
		fmt.Fprintln(w, "\nPLAYER\tID\tCONTROLLER")
		for _, p := range r.Players {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.ID, p.Controller)
		}
	}

	return nil
}

func outputSubscribersTable(w *tabwriter.Writer, r SubscribersResult) error {
	if len(r.Subscribers) == 0 {
		fmt.Fprintln(w, "No subscribers.")
		return nil
	}
	fmt.Fprintln(w, "ORDER\tSUBSCRIBER")
	for i, name := range r.Subscribers {
		fmt.Fprintf(w, "%d\t%s\n", i+1, name)
	}
	return nil
}
