// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package resource

import (
	"os"
	"os/user"
	"strconv"
)

// chownIfSet applies the resource's owner/group properties to path, when
// present. Resources that omit owner/group leave ownership untouched.
func chownIfSet(r *Resource, path string) error {
	ownerName, _ := r.Prop("owner").AsString()
	groupName, _ := r.Prop("group").AsString()
	if ownerName == "" && groupName == "" {
		return nil
	}

	uid := -1
	gid := -1

	if ownerName != "" {
		u, err := user.Lookup(ownerName)
		if err != nil {
			return err
		}
		uid, err = strconv.Atoi(u.Uid)
		if err != nil {
			return err
		}
	}

	if groupName != "" {
		g, err := user.LookupGroup(groupName)
		if err != nil {
			return err
		}
		var err2 error
		gid, err2 = strconv.Atoi(g.Gid)
		if err2 != nil {
			return err2
		}
	}

	return os.Chown(path, uid, gid)
}
