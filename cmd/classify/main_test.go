package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/couchcryptid/siren-relay/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestRun_Alarm(t *testing.T) {
	in := strings.NewReader(`[
		{"id": 102, "text": "Всем в укрытие"},
		{"id": 101, "text": "Авиационная опасность"}
	]`)
	var out bytes.Buffer

	assert.Equal(t, 0, run(in, &out, io.Discard, 100))

	got := out.String()
	assert.Contains(t, got, "messages:  2\n")
	assert.Contains(t, got, "alarm:     true\n")
	assert.Contains(t, got, "category:  aviation\n")
	assert.Contains(t, got, "watermark: 102\n")
	assert.Contains(t, got, "payload:   "+string(domain.Render(domain.TemplateAlarm, domain.CategoryAviation)))
}

func TestRun_WatermarkFiltersOldMessages(t *testing.T) {
	in := strings.NewReader(`[{"id": 90, "text": "Ракетная опасность"}]`)
	var out bytes.Buffer

	assert.Equal(t, 0, run(in, &out, io.Discard, 100))
	assert.Equal(t, "no messages above watermark 100\n", out.String())
}

func TestRun_NoSignal(t *testing.T) {
	in := strings.NewReader(`[{"id": 5, "text": "Тишина"}]`)
	var out bytes.Buffer

	assert.Equal(t, 0, run(in, &out, io.Discard, 0))
	assert.Contains(t, out.String(), "payload:   none\n")
	assert.Contains(t, out.String(), "watermark: 5\n")
}

func TestRun_InvalidJSONReportsOnStderr(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 1, run(strings.NewReader(`{`), &out, &errOut, 0))
	assert.Contains(t, errOut.String(), "decode messages")
	assert.Empty(t, out.String())
}
