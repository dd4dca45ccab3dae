package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/zerodrop/zerodrop/internal/client/history"
	"github.com/zerodrop/zerodrop/internal/client/secretclient"
	"github.com/zerodrop/zerodrop/internal/codec"
)

func (a *App) shareFile(ctx context.Context, path string) {
	hideStr, err := getSimpleText(a.reader, "- Hide original filename? (y/N)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	hide := hideStr == "y" || hideStr == "Y"

	ttlStr, err := getSimpleText(a.reader, "- Expires in (seconds, default 86400)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	ttl := 24 * time.Hour
	if ttlStr != "" {
		if n, err := strconv.Atoi(ttlStr); err == nil {
			ttl = time.Duration(n) * time.Second
		}
	}

	passphrase, err := getPassphrase(os.Stdout, "- Passphrase (leave blank for none): ")
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	created, err := a.secrets.UploadFile(ctx, path, secretclient.UploadFileOptions{
		HideFilename: hide,
		Passphrase:   passphrase,
		TTL:          ttl,
	})
	if err != nil {
		log.Printf("error uploading file: %v", err)
		return
	}

	a.recordShare(ctx, history.KindFile, created.ID, path, created.ContentKey, ttl)
	fmt.Printf("Uploaded file %s\nShare this id and key separately: %s / %s\n",
		created.ID, created.ID, codec.Encode(created.ContentKey))
}

func (a *App) downloadFile(ctx context.Context, id, keyB64u, dest string, revealFilename bool) {
	key, err := codec.Decode(keyB64u)
	if err != nil {
		log.Printf("error: invalid key: %v", err)
		return
	}

	meta, err := a.secrets.FileMeta(ctx, id)
	if err != nil {
		log.Printf("error fetching file metadata: %v", err)
		return
	}
	if meta.PassphraseSet {
		passphrase, perr := getPassphrase(os.Stdout, "This file is passphrase-protected. Enter passphrase: ")
		if perr != nil {
			log.Printf("error: %v", perr)
			return
		}
		valid, derivedKey, verr := a.secrets.ValidateFilePassphrase(ctx, id, passphrase, meta)
		if verr != nil {
			log.Printf("error validating passphrase: %v", verr)
			return
		}
		if !valid {
			fmt.Println("Incorrect passphrase.")
			return
		}
		key = derivedKey
	}

	if revealFilename && meta.HasHiddenFilename() {
		name, derr := secretclient.DecryptFilename(key, meta.EncryptedFilename, meta.FilenameIV)
		if derr != nil {
			log.Printf("error revealing filename: %v", derr)
		} else {
			fmt.Printf("Original filename: %s\n", name)
		}
	}

	if err := a.secrets.DownloadFile(ctx, id, key, meta, dest); err != nil {
		log.Printf("error downloading file: %v", err)
		return
	}
	fmt.Printf("Saved to %s\n", dest)
}
