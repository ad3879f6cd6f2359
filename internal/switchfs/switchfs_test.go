package switchfs_test

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/titledock/titledock/internal/codec"
	"github.com/titledock/titledock/internal/resolver"
	"github.com/titledock/titledock/internal/switchfs"
	"github.com/titledock/titledock/internal/testutil"
)

// memFile exposes an in-memory byte slice through the codec file contract.
type memFile struct {
	name string
	r    *bytes.Reader
}

func newMemFile(name string, data []byte) *memFile {
	return &memFile{name: name, r: bytes.NewReader(data)}
}

func (f *memFile) ReadAt(p []byte, off int64) (int, error) { return f.r.ReadAt(p, off) }
func (f *memFile) Name() string                            { return f.name }
func (f *memFile) Size() int64                             { return f.r.Size() }

func updateEntries(t *testing.T) []testutil.Entry {
	t.Helper()
	meta := testutil.BuildMetaNCA(0x0100000000001001, 0x20000, testutil.MetaTypePatch)
	control := testutil.BuildControlNCA(0x0100000000001001, []testutil.Entry{
		{Name: "control.nacp", Data: testutil.BuildNACP("Super Game", "1.2.0")},
	})
	return []testutil.Entry{
		{Name: "meta.cnmt.nca", Data: meta},
		{Name: "control.nca", Data: control},
	}
}

func TestDecodeSubmissionPackage(t *testing.T) {
	dec := switchfs.NewDecoder()

	t.Run("Update package round trip", func(t *testing.T) {
		nsp := testutil.BuildPFS0(updateEntries(t))
		sp, err := dec.DecodeSubmissionPackage(newMemFile("game_update.nsp", nsp))
		if err != nil {
			t.Fatalf("DecodeSubmissionPackage failed: %v", err)
		}
		if sp.Status() != nil {
			t.Fatalf("Expected healthy partition, got status %v", sp.Status())
		}
		if sp.DeclaredName() != "game_update" {
			t.Errorf("Expected declared name 'game_update', got %q", sp.DeclaredName())
		}

		archives := sp.CollapsedContentArchives()
		if len(archives) != 2 {
			t.Fatalf("Expected 2 collapsed archives, got %d", len(archives))
		}

		var meta, control codec.ContentArchive
		for _, a := range archives {
			switch a.Kind() {
			case codec.KindMeta:
				meta = a
			case codec.KindControl:
				control = a
			}
		}
		if meta == nil || control == nil {
			t.Fatal("Expected one Meta and one Control archive")
		}

		dirs := meta.Subdirectories()
		if len(dirs) != 1 || len(dirs[0].Files()) != 1 {
			t.Fatalf("Expected one section with one file in the Meta archive, got %+v", dirs)
		}
		record, err := dec.ParseContentMetadataRecord(dirs[0].Files()[0])
		if err != nil {
			t.Fatalf("ParseContentMetadataRecord failed: %v", err)
		}
		if record.TitleID != 0x0100000000001001 {
			t.Errorf("Expected title ID 0x0100000000001001, got 0x%x", record.TitleID)
		}
		if record.TitleVersion != 0x20000 {
			t.Errorf("Expected title version 0x20000, got 0x%x", record.TitleVersion)
		}
		if record.TitleType != codec.TitleTypeUpdate {
			t.Errorf("Expected update title type, got %v", record.TitleType)
		}

		root := control.FilesystemImage().ExtractedRoot()
		if root == nil {
			t.Fatal("Expected an extractable control filesystem root")
		}
		nacp := root.GetFile("control.nacp")
		if nacp == nil {
			t.Fatal("Expected control.nacp in the control filesystem root")
		}
		props, err := dec.ParseApplicationProperties(nacp)
		if err != nil {
			t.Fatalf("ParseApplicationProperties failed: %v", err)
		}
		if props.ApplicationName != "Super Game" {
			t.Errorf("Expected application name 'Super Game', got %q", props.ApplicationName)
		}
		if props.VersionString != "1.2.0" {
			t.Errorf("Expected version string '1.2.0', got %q", props.VersionString)
		}
	})

	t.Run("Non-archive entries are ignored", func(t *testing.T) {
		entries := append([]testutil.Entry{
			{Name: "readme.txt", Data: []byte("hello")},
		}, updateEntries(t)...)
		sp, err := dec.DecodeSubmissionPackage(newMemFile("mixed.nsp", testutil.BuildPFS0(entries)))
		if err != nil {
			t.Fatalf("DecodeSubmissionPackage failed: %v", err)
		}
		if got := len(sp.CollapsedContentArchives()); got != 2 {
			t.Errorf("Expected 2 archives, got %d", got)
		}
	})

	t.Run("Undecodable archive marks the partition failed", func(t *testing.T) {
		entries := []testutil.Entry{
			{Name: "opaque.nca", Data: make([]byte, 0x1000)},
		}
		sp, err := dec.DecodeSubmissionPackage(newMemFile("enc.nsp", testutil.BuildPFS0(entries)))
		if err != nil {
			t.Fatalf("DecodeSubmissionPackage failed: %v", err)
		}
		if sp.Status() == nil {
			t.Error("Expected a failed status for an undecodable archive")
		}
	})

	t.Run("Duplicate title and kind collapses to the later entry", func(t *testing.T) {
		base := testutil.BuildMetaNCA(0x0100000000001001, 0, testutil.MetaTypeApplication)
		patched := testutil.BuildMetaNCA(0x0100000000001001, 0x10000, testutil.MetaTypeApplication)
		nsp := testutil.BuildPFS0([]testutil.Entry{
			{Name: "base.cnmt.nca", Data: base},
			{Name: "patched.cnmt.nca", Data: patched},
		})
		sp, err := dec.DecodeSubmissionPackage(newMemFile("dup.nsp", nsp))
		if err != nil {
			t.Fatalf("DecodeSubmissionPackage failed: %v", err)
		}
		archives := sp.CollapsedContentArchives()
		if len(archives) != 1 {
			t.Fatalf("Expected duplicates to collapse to 1 archive, got %d", len(archives))
		}
		record, err := dec.ParseContentMetadataRecord(archives[0].Subdirectories()[0].Files()[0])
		if err != nil {
			t.Fatalf("ParseContentMetadataRecord failed: %v", err)
		}
		if record.TitleVersion != 0x10000 {
			t.Errorf("Expected the later archive to win, got version 0x%x", record.TitleVersion)
		}
	})

	t.Run("Garbage input fails decoding", func(t *testing.T) {
		if _, err := dec.DecodeSubmissionPackage(newMemFile("junk.nsp", []byte("not a package"))); err == nil {
			t.Error("Expected an error for a non-PFS0 payload")
		}
	})
}

func TestDecodeGamecardImage(t *testing.T) {
	dec := switchfs.NewDecoder()

	t.Run("Secure partition archives are exposed", func(t *testing.T) {
		xci := testutil.BuildXCI(updateEntries(t))
		sp, err := dec.DecodeGamecardImage(newMemFile("game.xci", xci))
		if err != nil {
			t.Fatalf("DecodeGamecardImage failed: %v", err)
		}
		if sp.Status() != nil {
			t.Fatalf("Expected healthy partition, got status %v", sp.Status())
		}
		if sp.DeclaredName() != "game" {
			t.Errorf("Expected declared name 'game', got %q", sp.DeclaredName())
		}
		if got := len(sp.CollapsedContentArchives()); got != 2 {
			t.Errorf("Expected 2 archives, got %d", got)
		}
	})

	t.Run("Missing header magic fails decoding", func(t *testing.T) {
		if _, err := dec.DecodeGamecardImage(newMemFile("junk.xci", make([]byte, 0x400))); err == nil {
			t.Error("Expected an error for a payload without a card header")
		}
	})
}

func TestParseContentMetadataRecord(t *testing.T) {
	dec := switchfs.NewDecoder()

	cases := []struct {
		name     string
		metaType byte
		want     codec.TitleType
	}{
		{"Application", testutil.MetaTypeApplication, codec.TitleTypeApplication},
		{"Patch", testutil.MetaTypePatch, codec.TitleTypeUpdate},
		{"AddOnContent", testutil.MetaTypeAddOnContent, codec.TitleTypeAddOnContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := testutil.BuildCNMT(0x0100000000002000, 7, tc.metaType)
			record, err := dec.ParseContentMetadataRecord(newMemFile("title.cnmt", raw))
			if err != nil {
				t.Fatalf("ParseContentMetadataRecord failed: %v", err)
			}
			if record.TitleType != tc.want {
				t.Errorf("Expected title type %v, got %v", tc.want, record.TitleType)
			}
		})
	}
}

func TestParseApplicationProperties(t *testing.T) {
	dec := switchfs.NewDecoder()

	t.Run("First populated language entry wins", func(t *testing.T) {
		raw := testutil.BuildNACP("", "2.0.1")
		copy(raw[0x300:], "Juego Estupendo")
		props, err := dec.ParseApplicationProperties(newMemFile("control.nacp", raw))
		if err != nil {
			t.Fatalf("ParseApplicationProperties failed: %v", err)
		}
		if props.ApplicationName != "Juego Estupendo" {
			t.Errorf("Expected the second language entry, got %q", props.ApplicationName)
		}
		if props.VersionString != "2.0.1" {
			t.Errorf("Expected version string '2.0.1', got %q", props.VersionString)
		}
	})

	t.Run("Truncated record is rejected", func(t *testing.T) {
		if _, err := dec.ParseApplicationProperties(newMemFile("control.nacp", make([]byte, 0x100))); err == nil {
			t.Error("Expected an error for a truncated record")
		}
	})
}

// End to end: real package files on disk, resolved through the on-disk
// codec into labeled install candidates.
func TestResolverWithDecoder(t *testing.T) {
	dir := t.TempDir()
	r := resolver.New(switchfs.NewDecoder())

	nsp := testutil.WriteUpdateNSP(t, dir, "super_game_update.nsp",
		0x0100000000001001, 0x20000, "Super Game", "1.2.0")
	xci := testutil.WriteXCI(t, dir, "super_game.xci", []testutil.Entry{
		{Name: "meta.cnmt.nca", Data: testutil.BuildMetaNCA(0x0100000000001001, 0x20000, testutil.MetaTypePatch)},
	})

	candidates := r.ResolveCandidates([]string{nsp, xci})
	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(candidates))
	}

	if candidates[0].Label != "Super Game (Update) (1.2.0)" {
		t.Errorf("Expected properties-derived label, got %q", candidates[0].Label)
	}
	if candidates[1].Label != "super_game (Update) (v131072)" {
		t.Errorf("Expected declared-name label, got %q", candidates[1].Label)
	}
	for _, c := range candidates {
		if !c.Selected {
			t.Errorf("Expected %s to be pre-selected", c.Path)
		}
	}
}

func TestCorruptControlFilesystemChain(t *testing.T) {
	dec := switchfs.NewDecoder()

	// A RomFS whose single file entry names itself as its own sibling. The
	// walk must reject the chain instead of following it.
	romfs := testutil.BuildRomFS([]testutil.Entry{
		{Name: "control.nacp", Data: testutil.BuildNACP("Looping Game", "1.0.0")},
	})
	const fileTableOffset = 0x50 + 0x18
	binary.LittleEndian.PutUint32(romfs[fileTableOffset+0x4:fileTableOffset+0x8], 0)

	nsp := testutil.BuildPFS0([]testutil.Entry{
		{Name: "meta.cnmt.nca", Data: testutil.BuildMetaNCA(0x0100000000001001, 0x10000, testutil.MetaTypePatch)},
		{Name: "control.nca", Data: testutil.BuildControlNCAFromImage(0x0100000000001001, romfs)},
	})

	sp, err := dec.DecodeSubmissionPackage(newMemFile("looping.nsp", nsp))
	if err != nil {
		t.Fatalf("DecodeSubmissionPackage failed: %v", err)
	}

	var control codec.ContentArchive
	for _, a := range sp.CollapsedContentArchives() {
		if a.Kind() == codec.KindControl {
			control = a
		}
	}
	if control == nil {
		t.Fatal("Expected a Control archive")
	}

	done := make(chan codec.Directory, 1)
	go func() { done <- control.FilesystemImage().ExtractedRoot() }()
	select {
	case root := <-done:
		if root != nil {
			t.Error("Expected no root for a cyclic file chain")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Extraction did not terminate on a cyclic file chain")
	}
}
