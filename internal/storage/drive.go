// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const driveFolderMime = "application/vnd.google-apps.folder"

// DriveBackend stores folders and files in Google Drive. Root ids are Drive
// folder ids.
type DriveBackend struct {
	svc *drive.Service
}

// NewDriveBackend authenticates with credentialsJSON, which may hold either
// authorized-user or service-account credentials.
func NewDriveBackend(ctx context.Context, credentialsJSON []byte, opts ...option.ClientOption) (*DriveBackend, error) {
	if len(credentialsJSON) > 0 {
		creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, drive.DriveScope)
		if err != nil {
			return nil, fmt.Errorf("drive credentials: %w", err)
		}
		opts = append([]option.ClientOption{option.WithCredentials(creds)}, opts...)
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return &DriveBackend{svc: svc}, nil
}

func (b *DriveBackend) Name() string { return "drive" }

// driveQuote escapes a value for a Drive query string literal.
func driveQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, `'`, `\'`) + "'"
}

func folderQuery(rootID, name string) string {
	return fmt.Sprintf("%s in parents and mimeType = '%s' and name = %s and trashed = false",
		driveQuote(rootID), driveFolderMime, driveQuote(name))
}

func (b *DriveBackend) FindFolder(ctx context.Context, rootID, name string) (string, error) {
	list, err := b.svc.Files.List().
		Q(folderQuery(rootID, name)).
		Spaces("drive").
		Fields("files(id, name)").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if len(list.Files) == 0 {
		return "", ErrFolderNotFound
	}
	return list.Files[0].Id, nil
}

func (b *DriveBackend) CreateFolder(ctx context.Context, rootID, name string) (string, error) {
	f, err := b.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: driveFolderMime,
		Parents:  []string{rootID},
	}).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return f.Id, nil
}

func (b *DriveBackend) UploadFile(ctx context.Context, folderID, localPath, remoteName string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	_, err = b.svc.Files.Create(&drive.File{
		Name:    remoteName,
		Parents: []string{folderID},
	}).Media(src, googleapi.ContentType("video/mp4")).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	return err
}
