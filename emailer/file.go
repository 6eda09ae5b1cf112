package emailer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/xid"
)

// FileMail writes every message as an .eml file instead of delivering it
type FileMail struct {
	dir      string
	fromName string
	from     string
}

func NewFileMail(dir, fromName, from string) (*FileMail, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("cannot create mail directory: %w", err)
	}
	return &FileMail{dir: dir, fromName: fromName, from: from}, nil
}

func (o *FileMail) Send(msg Message) error {
	email, err := composeMSG(o.fromName, o.from, msg)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%s.eml", time.Now().UTC().Format("20060102-150405"), xid.New().String())
	return os.WriteFile(filepath.Join(o.dir, name), []byte(email.GetMessage()), 0o644)
}
