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
	"github.com/zerodrop/zerodrop/internal/common"
)

func (a *App) shareNote(ctx context.Context) {
	text, err := getMultiline(a.reader, "- Enter note text (double Enter to finish):", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	viewsStr, err := getSimpleText(a.reader, "- Views allowed (default 1)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	views := common.MinViews
	if viewsStr != "" {
		if n, err := strconv.Atoi(viewsStr); err == nil {
			views = n
		}
	}

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

	created, err := a.secrets.CreateNote(ctx, text, secretclient.CreateNoteOptions{
		Passphrase: passphrase,
		Views:      views,
		TTL:        ttl,
	})
	if err != nil {
		log.Printf("error creating note: %v", err)
		return
	}

	a.recordShare(ctx, history.KindNote, created.ID, "(note)", created.ContentKey, ttl)
	fmt.Printf("Created note %s\nShare this id and key separately: %s / %s\n",
		created.ID, created.ID, codec.Encode(created.ContentKey))
}

func (a *App) getNote(ctx context.Context, id, keyB64u string) {
	key, err := codec.Decode(keyB64u)
	if err != nil {
		log.Printf("error: invalid key: %v", err)
		return
	}

	params, err := a.secrets.NotePassphraseParams(ctx, id)
	if err == nil {
		passphrase, perr := getPassphrase(os.Stdout, "This note is passphrase-protected. Enter passphrase: ")
		if perr != nil {
			log.Printf("error: %v", perr)
			return
		}
		valid, derivedKey, verr := a.secrets.ValidateNotePassphrase(ctx, id, passphrase, params)
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

	text, err := a.secrets.FetchNote(ctx, id, key)
	if err != nil {
		log.Printf("error fetching note: %v", err)
		return
	}
	fmt.Println("---")
	fmt.Println(text)
	fmt.Println("---")
}
