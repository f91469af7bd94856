/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hugin_tv/internal/models"
)

func TestGuideExporter_Write(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()

	base := time.Now().Add(time.Hour).Truncate(time.Second)
	seedEntry(t, db, base, base.Add(30*time.Minute), func(e *models.ScheduleEntry) {
		e.Title = "Orbit Diner S1 E1"
		e.Description = "Pilot episode"
		e.Thumbnail = "https://example.org/orbit.png"
		e.ThumbnailWidth = 300
		e.ThumbnailHeight = 170
	})
	seedEntry(t, db, base.Add(30*time.Minute), base.Add(60*time.Minute), func(e *models.ScheduleEntry) {
		e.Title = "Night Shift S2 E3"
	})

	exporter := NewGuideExporter(NewStore(db, zerolog.Nop()), ChannelIdentity{
		ID:   "1",
		Name: "Hugin TV",
		Icon: "https://example.org/logo.png",
	}, zerolog.Nop())

	var buf bytes.Buffer
	if err := exporter.Write(ctx, &buf); err != nil {
		t.Fatalf("write guide: %v", err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "<?xml") {
		t.Fatal("missing xml header")
	}
	for _, want := range []string{
		`<channel id="1">`,
		`<display-name>Hugin TV</display-name>`,
		`<icon src="https://example.org/logo.png"`,
		`Orbit Diner S1 E1`,
		`Pilot episode`,
		`Night Shift S2 E3`,
		// Entries without a description get a placeholder.
		`No description`,
		`<icon src="https://example.org/orbit.png" width="300" height="170">`,
		base.Format(xmltvTimeLayout),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("guide missing %q:\n%s", want, out)
		}
	}
}
