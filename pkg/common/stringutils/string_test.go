package stringutils

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandTildePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	assert.Equal(t, home+"/certs/ca.pem", ExpandTildePath("~/certs/ca.pem"))
	assert.Equal(t, "./certs/ca.pem", ExpandTildePath("./certs/ca.pem"))
	assert.Equal(t, "/a~b", ExpandTildePath("/a~b"))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "", Redact(""))
	assert.Equal(t, "***", Redact("abc"))
	assert.Equal(t, "se**et", Redact("secret"))
}
