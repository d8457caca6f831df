package location

const readmeText = `# stow data directory

This directory is managed by stow, a reproducible location to store and
access data. Every application gets its own folder:

    <this directory>/<module>/<subkey>/.../<file>

## Configuration

By default data lives in $HOME/.data. The following environment variables
change that:

- STOW_NAME: use $HOME/$STOW_NAME instead of $HOME/.data.
- STOW_HOME: use a completely custom directory. When set, STOW_NAME is ignored.
- STOW_USE_APPDIRS=true: use the platform application data directory.
- <MODULE>_HOME: relocate a single module, e.g. POKEMON_HOME=/srv/pokemon.

Files are downloaded once and reused. Delete a file (or pass --force) to
fetch it again.
`
