// Package asar reads packed archives: a read-only filesystem stored in a
// single file as a JSON directory tree followed by concatenated file bytes.
//
// Archives are opened with [Open] for local files or [New] for any
// [ByteSource], such as the HTTP range reader in the http subpackage.
// An [Archive] answers metadata queries straight from the parsed header
// and materializes files as real temporary files on demand:
//
//	a, err := asar.Open("app.asar")
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	info, err := a.GetFileInfo("lib/index.js")
//	path, err := a.CopyFileOut("bin/helper")
//
// # Symlinks
//
// Symlink targets are paths from the archive root. [Archive.Stat] and
// [Archive.Realpath] report on a symlink itself; [Archive.GetFileInfo],
// [Archive.ReadFile] and [Archive.CopyFileOut] follow it. Chains longer
// than [DefaultMaxLinkDepth] hops fail with [ErrLinkDepth].
//
// # Unpacked files
//
// Files the packer left out of the archive live beside it, under
// "<archive>.unpacked/<path>". They are served from there and never copied.
//
// # Standard library interop
//
// [Archive.FS] exposes the archive as an fs.FS that also implements
// fs.StatFS, fs.ReadDirFS, fs.ReadFileFS and fs.ReadLinkFS.
package asar
