package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/lyx/internal/models"
	"github.com/desertthunder/lyx/internal/services"
	"github.com/desertthunder/lyx/internal/shared"
	"github.com/urfave/cli/v3"
)

// geniusArtist resolves the config, builds the client and looks up the artist argument.
func (r *Runner) geniusArtist(ctx context.Context, cmd *cli.Command) (*services.GeniusService, *services.GeniusArtist, error) {
	name := strings.TrimSpace(cmd.StringArg("artist"))
	if name == "" {
		return nil, nil, fmt.Errorf("%w: artist name", shared.ErrMissingArgument)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	genius, err := r.geniusService(config)
	if err != nil {
		return nil, nil, err
	}

	r.logger.Info("searching genius", "artist", name)
	artist, err := genius.SearchArtist(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return genius, artist, nil
}

// GeniusSearch resolves an artist name the way a harvest does.
func (r *Runner) GeniusSearch(ctx context.Context, cmd *cli.Command) error {
	_, artist, err := r.geniusArtist(ctx, cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(artist, true)
	}

	r.writePlain("Found artist:\n\n")
	r.writePlain("Name: %s\n", artist.Name)
	r.writePlain("ID: %d\n", artist.ID)
	if artist.URL != "" {
		r.writePlain("URL: %s\n", artist.URL)
	}
	return nil
}

// GeniusSongs lists the songs a harvest would keep for an artist, without fetching lyrics.
func (r *Runner) GeniusSongs(ctx context.Context, cmd *cli.Command) error {
	genius, artist, err := r.geniusArtist(ctx, cmd)
	if err != nil {
		return err
	}

	songs, err := genius.Catalog(ctx, artist.ID, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(songs, true)
	}

	r.writePlainHeader(fmt.Sprintf("%s (%d songs)", artist.Name, len(songs)))
	for i, song := range songs {
		released := models.ReleaseDateUnknown
		if song.ReleaseDate != nil && *song.ReleaseDate != "" {
			released = *song.ReleaseDate
		}
		r.writePlain("%3d. %s (%s)\n", i+1, song.Title, released)
	}
	return nil
}
