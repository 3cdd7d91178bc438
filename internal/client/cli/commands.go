package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dkarpov/papersync/internal/client/models"
	"github.com/dkarpov/papersync/internal/client/services"
)

// test seams for interactive input
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}

	userID, err := a.auth.Register(ctx, email, password)
	if err != nil {
		fmt.Println("registration failed:", err)
		return err
	}
	a.startSession(ctx, userID)
	fmt.Println("Success!")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}

	userID, err := a.auth.Login(ctx, email, password)
	if err != nil {
		fmt.Println("login failed:", err)
		return err
	}
	a.startSession(ctx, userID)
	fmt.Println("Success!")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.auth.Logout()
	a.endSession()
	fmt.Println("Signed out.")
	return nil
}

func (a *App) Add(ctx context.Context) error {
	title, err := getSimpleText(a.reader, "Title", os.Stdout)
	if err != nil {
		return err
	}
	category, err := getSimpleText(a.reader, "Category (optional)", os.Stdout)
	if err != nil {
		return err
	}
	notes, err := getSimpleText(a.reader, "Notes (optional)", os.Stdout)
	if err != nil {
		return err
	}
	renewal, err := getSimpleText(a.reader, "Renewal date YYYY-MM-DD (optional)", os.Stdout)
	if err != nil {
		return err
	}

	in := services.DocumentInput{Title: title, Category: category, Notes: notes}
	if renewal != "" {
		t, err := time.Parse("2006-01-02", renewal)
		if err != nil {
			fmt.Println("invalid date:", err)
			return err
		}
		in.RenewalDate = &t
	}

	d, err := a.docs.Create(ctx, in)
	if err != nil {
		fmt.Println("error:", err)
		return err
	}
	fmt.Println("Created", d.SyncID)
	return nil
}

func (a *App) List(ctx context.Context) error {
	docs, err := a.docs.List(ctx)
	if err != nil {
		fmt.Println("error:", err)
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No documents.")
		return nil
	}
	for _, d := range docs {
		fmt.Printf("%s  v%-3d %-15s %s\n", d.SyncID, d.Version, d.SyncState, d.Title)
	}
	return nil
}

func (a *App) Show(ctx context.Context, id string) error {
	d, err := a.docs.Get(ctx, id)
	if err != nil {
		fmt.Println("error:", err)
		return err
	}
	fmt.Printf("Title:    %s\nCategory: %s\nNotes:    %s\n", d.Title, d.Category, d.Notes)
	if d.RenewalDate != nil {
		fmt.Printf("Renewal:  %s\n", d.RenewalDate.Format("2006-01-02"))
	}
	fmt.Printf("State:    %s (version %d)\n", d.SyncState, d.Version)

	atts, err := a.docs.Attachments(ctx, id)
	if err != nil {
		return err
	}
	for _, att := range atts {
		uploaded := "local only"
		if att.Uploaded() {
			uploaded = "uploaded"
		}
		fmt.Printf("  file %s  %s (%d bytes, %s)\n", att.SyncID, att.FileName, att.FileSize, uploaded)
	}
	return nil
}

func (a *App) Delete(ctx context.Context, id string) error {
	if err := a.docs.Delete(ctx, id); err != nil {
		fmt.Println("error:", err)
		return err
	}
	fmt.Println("Deleted.")
	return nil
}

func (a *App) Attach(ctx context.Context, id, path string) error {
	att, err := a.docs.AttachFile(ctx, id, path)
	if err != nil {
		fmt.Println("error:", err)
		return err
	}
	fmt.Println("Attached", att.FileName, "as", att.SyncID)
	return nil
}

func (a *App) Detach(ctx context.Context, id string) error {
	if err := a.docs.DetachFile(ctx, id); err != nil {
		fmt.Println("error:", err)
		return err
	}
	fmt.Println("Detached.")
	return nil
}

func (a *App) SyncNow(ctx context.Context) error {
	stats, err := a.coordinator.Sync(ctx)
	if err != nil {
		fmt.Println("sync failed:", err)
		return err
	}
	fmt.Printf("Pushed %d, pulled %d, conflicts %d, failed %d\n",
		stats.Drain.Applied, stats.Pulled, stats.Conflicts, stats.Drain.Failed)
	return nil
}

func (a *App) Status(ctx context.Context) error {
	fmt.Println("Session:", a.status())
	for _, b := range a.retry.Status() {
		state := "closed"
		if b.Open {
			state = "open since " + b.OpenedAt.Format(time.RFC3339)
		}
		fmt.Printf("  circuit %-16s %s (%d consecutive failures)\n", b.Key, state, b.ConsecutiveFailures)
	}
	return nil
}

func (a *App) Conflicts(ctx context.Context) error {
	open, err := a.docs.OpenConflicts(ctx)
	if err != nil {
		fmt.Println("error:", err)
		return err
	}
	if len(open) == 0 {
		fmt.Println("No open conflicts.")
		return nil
	}
	for _, c := range open {
		fmt.Printf("#%d %s detected %s\n", c.ID, c.DocumentSyncID, c.DetectedAt.Format(time.RFC3339))
		fmt.Printf("  local:  %q modified %s\n", c.LocalVersion.Title, c.LocalVersion.LastModified.Format(time.RFC3339))
		fmt.Printf("  remote: %q modified %s\n", c.RemoteVersion.Title, c.RemoteVersion.LastModified.Format(time.RFC3339))
	}
	return nil
}

func (a *App) Resolve(ctx context.Context, idArg, strategyArg string) error {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		fmt.Println("invalid conflict id:", idArg)
		return err
	}
	d, err := a.docs.ResolveConflict(ctx, id, models.ResolutionStrategy(strategyArg), nil)
	if err != nil {
		fmt.Println("error:", err)
		return err
	}
	fmt.Println("Resolved; document is now", d.SyncState)
	return nil
}

func (a *App) Retry(ctx context.Context) error {
	n, err := a.coordinator.RequeueFailed(ctx)
	if err != nil {
		fmt.Println("error:", err)
		return err
	}
	fmt.Printf("Requeued %d operation(s)\n", n)
	return nil
}

func (a *App) Pause(ctx context.Context) error {
	a.coordinator.Pause()
	fmt.Println("Sync paused.")
	return nil
}

func (a *App) Resume(ctx context.Context) error {
	a.coordinator.Resume()
	fmt.Println("Sync resumed.")
	return nil
}
