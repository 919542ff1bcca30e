package model

// Field extraction for the two inbound document schemas. Each field has
// one accessor with its own default so that a missing or malformed field
// never affects its neighbours.

// senderLogin reads sender.login.
func senderLogin(p Payload) Optional[string] {
	return p.Object("sender").Text("login")
}

// eventAction reads the top-level action.
func eventAction(p Payload) Optional[string] {
	return p.Text("action")
}

func extractSourceEvent(p Payload) SourceEvent {
	return SourceEvent{
		SenderIdentity: senderLogin(p).OrElse(UnknownSender),
		Action:         eventAction(p),
	}
}

func extractRepository(repo Payload) RepositoryRef {
	return RepositoryRef{
		ID:       repo.Integer("id"),
		FullName: repo.Text("full_name"),
		URL:      repo.Text("url"),
		CloneURL: repo.Text("clone_url"),
		GitURL:   repo.Text("git_url"),
		SSHURL:   repo.Text("ssh_url"),
	}
}

// commitRef reads commit as a SHA string or as an object with a sha.
func commitRef(d Payload) Optional[string] {
	if sha := d.Text("commit"); sha.IsSet() {
		return sha
	}
	return d.Object("commit").Text("sha")
}

// pullRequestNumber reads pull_request as a number or as an object with a
// number.
func pullRequestNumber(d Payload) Optional[int64] {
	if n := d.Integer("pull_request"); n.IsSet() {
		return n
	}
	return d.Object("pull_request").Integer("number")
}

func extractTargetResource(d Payload) TargetResource {
	return TargetResource{
		Repository:  extractRepository(d.Object("repository")),
		IssueNumber: d.Integer("issue_number"),
		Commit:      commitRef(d),
		PullRequest: pullRequestNumber(d),
	}
}
