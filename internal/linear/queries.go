package linear

// GraphQL documents sent to the Linear API. Caller input only ever travels
// in variables.

const issueFields = `
fragment IssueFields on Issue {
  id
  identifier
  title
  description
  priority
  priorityLabel
  url
  createdAt
  updatedAt
  state { id name type position }
  assignee { id name email }
  team {
    id
    key
    name
    states(first: 100) { nodes { id name type position } }
  }
  labels { nodes { id name color } }
  project { id name }
  comments(first: 100) { nodes { id body createdAt user { id name email } } }
}`

const getIssueQuery = `
query GetIssue($filter: IssueFilter!) {
  issues(filter: $filter, first: 1) {
    nodes { ...IssueFields }
  }
}` + issueFields

const searchIssuesQuery = `
query SearchIssues($filter: IssueFilter, $first: Int!, $after: String) {
  issues(filter: $filter, first: $first, after: $after, orderBy: updatedAt) {
    nodes {
      id
      identifier
      title
      priority
      priorityLabel
      url
      state { id name type }
      assignee { id name email }
      team { id key name }
    }
    pageInfo { hasNextPage endCursor }
  }
}`

const listTeamsQuery = `
query ListTeams {
  teams(first: 100) {
    nodes {
      id
      key
      name
      states(first: 100) { nodes { id name type position } }
    }
  }
}`

const findTeamQuery = `
query FindTeam($key: String!) {
  teams(filter: { key: { eqIgnoreCase: $key } }) {
    nodes { id key name }
  }
}`

const findWorkflowStatesQuery = `
query FindWorkflowStates($filter: WorkflowStateFilter) {
  workflowStates(filter: $filter, first: 50) {
    nodes { id name type position }
  }
}`

const findUsersQuery = `
query FindUsers($email: String!) {
  users(filter: { email: { eqIgnoreCase: $email } }) {
    nodes { id name email }
  }
}`

const updateIssueMutation = `
mutation UpdateIssue($id: String!, $input: IssueUpdateInput!) {
  issueUpdate(id: $id, input: $input) {
    success
    issue { ...IssueFields }
  }
}` + issueFields

const createCommentMutation = `
mutation CreateComment($input: CommentCreateInput!) {
  commentCreate(input: $input) {
    success
    comment { id body createdAt user { id name email } }
  }
}`

const viewerQuery = `
query Viewer {
  viewer { id name email }
}`
