package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/coregx/peerchat/model"
)

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func writeMessages(out io.Writer, msgs []model.Message) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tFROM\tTEXT")
	for _, m := range msgs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", m.ID, formatTime(m.CreatedAt), m.FromUserID, m.Text)
	}
	return w.Flush()
}
