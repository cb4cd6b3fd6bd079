package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/avdeyev/catchdex/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) credentials() (string, string, error) {
	username, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return "", "", err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return "", "", err
	}
	return username, string(password), nil
}

func parseID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: item id required", common.ErrInvalidID)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", common.ErrInvalidID, args[0])
	}
	return id, nil
}

func parseIDs(args []string) ([]int64, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: item ids required", common.ErrInvalidID)
	}
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseID([]string{arg})
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (a *App) Register(ctx context.Context) error {
	username, password, err := a.credentials()
	if err != nil {
		return err
	}
	prof, err := a.account.Register(ctx, username, password)
	if err != nil {
		return err
	}
	printlnFn("Welcome,", prof.Username+"!")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	username, password, err := a.credentials()
	if err != nil {
		return err
	}
	prof, err := a.account.Login(ctx, username, password)
	if err != nil {
		return err
	}
	printlnFn("Welcome back,", prof.Username+"!")
	return nil
}

func (a *App) StartLocal(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Pick a name (optional)", os.Stdout)
	if err != nil {
		return err
	}
	if err := a.account.StartLocal(ctx, username); err != nil {
		return err
	}
	printlnFn("Local-only session started. Catches stay on this device until you promote.")
	return nil
}

func (a *App) Promote(ctx context.Context) error {
	username, password, err := a.credentials()
	if err != nil {
		return err
	}
	prof, err := a.account.PromoteToPermanent(ctx, username, password)
	if err != nil {
		return err
	}
	printlnFn("Promoted! Your collection now syncs as", prof.Username+".")
	return nil
}

func (a *App) Catch(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	note := strings.Join(args[1:], " ")

	rec, err := a.owns.Acquire(ctx, id, note)
	if err != nil {
		return err
	}
	if rec.IsTemp() {
		printlnFn("Caught! (queued for sync)")
	} else {
		printlnFn("Caught!")
	}
	return nil
}

func (a *App) CatchMany(ctx context.Context, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	recs, err := a.owns.AcquireBulk(ctx, ids)
	if err != nil {
		return err
	}
	skipped := len(ids) - len(recs)
	msg := fmt.Sprintf("Caught %d item(s)", len(recs))
	if skipped > 0 {
		msg += fmt.Sprintf(", %d already owned", skipped)
	}
	printlnFn(msg)
	return nil
}

func (a *App) Release(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	if err := a.owns.Release(ctx, id); err != nil {
		return err
	}
	printlnFn("Released.")
	return nil
}

func (a *App) Note(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	text, err := getSimpleText(a.reader, "Note text", os.Stdout)
	if err != nil {
		return err
	}
	if _, err := a.owns.UpdateMetadata(ctx, id, &text, nil); err != nil {
		return err
	}
	printlnFn("Note saved.")
	return nil
}

func (a *App) Fav(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}

	recs, err := a.owns.ListOwned(ctx)
	if err != nil {
		return err
	}
	for i := range recs {
		if recs[i].ItemID == id {
			next := !recs[i].Favorite
			if _, err := a.owns.UpdateMetadata(ctx, id, nil, &next); err != nil {
				return err
			}
			if next {
				printlnFn("Marked as favorite.")
			} else {
				printlnFn("Favorite removed.")
			}
			return nil
		}
	}
	return common.ErrNotFound
}

func (a *App) List(ctx context.Context) error {
	recs, err := a.owns.ListOwned(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		printlnFn("Nothing caught yet.")
		return nil
	}
	for i := range recs {
		r := &recs[i]
		name := fmt.Sprintf("#%d", r.ItemID)
		if item, err := a.catalog.Get(ctx, r.ItemID); err == nil {
			name = fmt.Sprintf("#%d %s", item.ID, item.Name)
		}
		line := fmt.Sprintf("%-24s caught %s", name, r.CaughtAt.Local().Format("2006-01-02 15:04"))
		if r.Favorite {
			line += "  *"
		}
		if r.Note != "" {
			line += "  (" + r.Note + ")"
		}
		if r.IsTemp() {
			line += "  [pending sync]"
		}
		printlnFn(line)
	}
	return nil
}

func (a *App) Dex(ctx context.Context, args []string) error {
	page := 1
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			page = n
		}
	}
	items, err := a.catalog.List(ctx, a.config.PageSize, (page-1)*a.config.PageSize)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		printlnFn("No catalog entries on this page.")
		return nil
	}
	for i := range items {
		mark := "[ ]"
		if items[i].Owned {
			mark = "[x]"
		}
		printlnFn(fmt.Sprintf("%s #%03d %s", mark, items[i].ID, items[i].Name))
	}
	return nil
}

func (a *App) Find(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: find <name>")
		return nil
	}
	items, err := a.catalog.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if len(items) == 0 {
		printlnFn("No matches.")
		return nil
	}
	for i := range items {
		mark := "[ ]"
		if items[i].Owned {
			mark = "[x]"
		}
		printlnFn(fmt.Sprintf("%s #%03d %s", mark, items[i].ID, items[i].Name))
	}
	return nil
}

func (a *App) Stats(ctx context.Context) error {
	st, err := a.owns.Stats(ctx)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("Owned %d of %d", st.Owned, st.Catalog)
	if st.Catalog > 0 {
		line += fmt.Sprintf(" (%.1f%%)", float64(st.Owned)/float64(st.Catalog)*100)
	}
	line += fmt.Sprintf(", favorites: %d", st.Favorites)
	printlnFn(line)
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	if err := a.manager.Drain(ctx, false); err != nil {
		return err
	}
	n, err := a.account.PendingCount(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		printlnFn("All caught up.")
	} else {
		printlnFn(fmt.Sprintf("%d action(s) still pending.", n))
	}
	return nil
}

func (a *App) Status(ctx context.Context) error {
	sess := a.sessions.Current()
	if !sess.LoggedIn() {
		printlnFn("Not logged in.")
		return nil
	}
	link := "offline"
	if a.monitor.Online() {
		link = "online"
	}
	n, err := a.account.PendingCount(ctx)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("%s (%s), %s, %d pending action(s)", sess.Username, sess.Mode, link, n))
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	n, err := a.account.PendingCount(ctx)
	if err != nil {
		return err
	}
	// A local-only collection exists nowhere else, so its logout always
	// asks. Permanent accounts only lose unsynced work.
	var warning string
	switch {
	case a.sessions.Current().IsLocal():
		warning = "This account is local-only: logging out deletes its collection from this device."
	case n > 0:
		warning = fmt.Sprintf("%d action(s) have not been synced and will be lost.", n)
	}
	if warning != "" {
		answer, err := getSimpleText(a.reader, warning+" Continue? (y/N)", os.Stdout)
		if err != nil {
			return err
		}
		if !strings.EqualFold(answer, "y") {
			printlnFn("Logout cancelled.")
			return nil
		}
	}
	if err := a.account.Logout(ctx); err != nil {
		return err
	}
	printlnFn("Logged out.")
	return nil
}
