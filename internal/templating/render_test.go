package templating

import (
	"testing"
	"time"

	"github.com/LeventeLantos/wasender/internal/model"
)

func at(hour int) time.Time {
	return time.Date(2026, 3, 1, hour, 30, 0, 0, time.Local)
}

func TestRender_FallbacksForEmptyFields(t *testing.T) {
	t.Parallel()

	e := model.Entry{RecipientName: "Budi", ReceiptNumber: "R1"}
	got := Render("Hi {nama}, item {barang}, resi {resi}", e, model.Settings{}, at(9))

	if want := "Hi Budi, item -, resi R1"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRender_AllTokens(t *testing.T) {
	t.Parallel()

	e := model.Entry{RecipientName: "Sari", ItemName: "Sepatu", ReceiptNumber: "JX1", COD: "150000"}
	s := model.Settings{SenderName: "Rina"}

	got := Render("{salam}|{pengirim}|{nama}|{barang}|{resi}|{cod}", e, s, at(13))
	want := "Selamat siang|Rina|Sari|Sepatu|JX1|150000"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRender_DefaultSenderAndCOD(t *testing.T) {
	t.Parallel()

	got := Render("{pengirim} {cod}", model.Entry{}, model.Settings{}, at(9))
	if want := "Admin JNT 0"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRender_CaseInsensitiveTokens(t *testing.T) {
	t.Parallel()

	e := model.Entry{RecipientName: "Budi"}
	got := Render("{NAMA} {Nama} {nama}", e, model.Settings{}, at(9))
	if want := "Budi Budi Budi"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRender_LeavesUnknownTokensAndPartialWords(t *testing.T) {
	t.Parallel()

	e := model.Entry{RecipientName: "Budi"}
	got := Render("{alamat} nama {namanya} {nama", e, model.Settings{}, at(9))
	if want := "{alamat} nama {namanya} {nama"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRender_DoesNotRescanSubstitutedValues(t *testing.T) {
	t.Parallel()

	e := model.Entry{RecipientName: "{resi}", ReceiptNumber: "R9"}
	got := Render("{nama} / {resi}", e, model.Settings{}, at(9))
	if want := "{resi} / R9"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestGreeting_HourBands(t *testing.T) {
	t.Parallel()

	cases := []struct {
		hour int
		want string
	}{
		{6, "Selamat pagi"},
		{13, "Selamat siang"},
		{16, "Selamat sore"},
		{22, "Selamat malam"},
		{4, "Selamat pagi"},
		{10, "Selamat pagi"},
		{11, "Selamat siang"},
		{15, "Selamat sore"},
		{18, "Selamat malam"},
		{2, "Selamat malam"},
	}

	for _, tc := range cases {
		if got := Greeting(at(tc.hour)); got != tc.want {
			t.Fatalf("hour %d: expected %q, got %q", tc.hour, tc.want, got)
		}
	}
}

func TestAppendTag(t *testing.T) {
	t.Parallel()

	if got := AppendTag("Halo", TagName); got != "Halo {nama}" {
		t.Fatalf("unexpected %q", got)
	}
	if !IsTag("{RESI}") || IsTag("{alamat}") {
		t.Fatalf("IsTag misclassified tokens")
	}
}
