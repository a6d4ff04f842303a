//go:build !unix

package destination

import "os"

// Advisory locks are only taken on unix platforms.
func tryLock(*os.File) error { return nil }

func release(*os.File) error { return nil }
