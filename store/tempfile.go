package store

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/carbocation/pfx"
)

// RandHeteroglyphs produces a string of n symbols which do not look like one
// another. (Derived to be the opposite of homoglyphs, which are symbols which
// look similar to one another and cannot be quickly distinguished.)
func RandHeteroglyphs(n int) string {
	var letters = []rune("abcdefghkmnpqrstwxyz")
	lenLetters := len(letters)
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rand.Intn(lenLetters)]
	}
	return string(b)
}

// createTemp opens a new hidden file next to final, so that a later rename
// onto final stays on one filesystem.
func createTemp(final string) (*os.File, error) {
	dir, base := filepath.Split(final)
	for i := 0; ; i++ {
		name := filepath.Join(dir, "."+base+"."+RandHeteroglyphs(12)+".tmp")
		f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if os.IsExist(err) && i < 10 {
			continue
		}
		return f, err
	}
}

// WriteFileAtomic writes path through a temporary file that is renamed into
// place only after fn and the flush succeed.
func WriteFileAtomic(path string, fn func(io.Writer) error) (err error) {
	f, err := createTemp(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	buf := bufio.NewWriter(f)
	if err = fn(buf); err != nil {
		return err
	}
	if err = buf.Flush(); err != nil {
		return pfx.Err(err)
	}
	if err = f.Close(); err != nil {
		return pfx.Err(err)
	}
	if err = os.Rename(f.Name(), path); err != nil {
		return pfx.Err(fmt.Errorf("finalizing %s: %w", path, err))
	}

	return nil
}
