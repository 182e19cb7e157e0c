package graphql

// schemaSDL is the gateway's fixed schema. It exists for document
// validation; execution is the operation-name router in this package, so
// every root field maps one-to-one onto a registry resolver.
const schemaSDL = `
scalar JSON

type Query {
  weather(lat: String, lon: String): Weather!
  satellite(vessel_id: ID): SatelliteTrack!
  ais(mmsi: String): AISContact!
  logistics(port: String): PortLogistics!
  documents(id: ID, category: String, vessel_id: ID, limit: Int, offset: Int): [Document!]!
  checklists(id: ID, vessel_id: ID, limit: Int, offset: Int): [Checklist!]!
  audits(id: ID, vessel_id: ID, severity: String, limit: Int, offset: Int): [VesselAudit!]!
  vessels(id: ID, flag: String, vessel_type: String, limit: Int, offset: Int): [Vessel!]!
  forecasts(vessel_id: ID): [Forecast!]!
  analytics: Analytics!
  templates(id: ID, limit: Int, offset: Int): [Template!]!
  users(id: ID, role: String, limit: Int, offset: Int): [User!]!
  apiKeys: [ApiKey!]!
  webhooks(id: ID, event: String, limit: Int, offset: Int): [Webhook!]!
  status: GatewayStatus!
}

type Mutation {
  createDocument(title: String!, category: String, vessel_id: ID, content: String): Document!
  updateDocument(id: ID!, title: String, category: String, vessel_id: ID, content: String): Document!
  deleteDocument(id: ID!): DeleteResult!
  createChecklist(name: String!, vessel_id: ID, items: JSON): Checklist!
  updateChecklist(id: ID!, name: String, vessel_id: ID, items: JSON): Checklist!
  deleteChecklist(id: ID!): DeleteResult!
  createAudit(vessel_id: ID!, finding: String, severity: String): VesselAudit!
  createVessel(name: String!, imo: String, flag: String, vessel_type: String): Vessel!
  updateVessel(id: ID!, name: String, imo: String, flag: String, vessel_type: String): Vessel!
  deleteVessel(id: ID!): DeleteResult!
  createTemplate(name: String!, body: String): Template!
  deleteTemplate(id: ID!): DeleteResult!
  updateUser(id: ID, display_name: String, email: String, phone: String): User!
  createApiKey(name: String!, scope: [String!]): ApiKeyWithSecret!
  deleteApiKey(id: ID!): DeleteResult!
  createWebhook(url: String!, event: String): Webhook!
  deleteWebhook(id: ID!): DeleteResult!
}

type Weather {
  lat: String!
  lon: String!
  temperature_c: Float!
  wind_knots: Float!
  wave_height_m: Float!
  condition: String!
  visibility_nm: Float!
  source: String!
}

type SatellitePosition {
  lat: Float!
  lon: Float!
  recorded_at: String!
}

type SatelliteTrack {
  vessel_id: ID!
  positions: [SatellitePosition!]!
  heading: Float!
  source: String!
}

type AISContact {
  mmsi: String!
  lat: Float!
  lon: Float!
  speed_knots: Float!
  course: Float!
  nav_status: String!
  source: String!
}

type PortLogistics {
  port: String!
  berth_wait_hours: Float!
  available_berths: Int!
  congestion_level: String!
  pilotage_required: Boolean!
  source: String!
}

type Document {
  id: ID!
  owner_id: ID!
  title: String!
  category: String
  vessel_id: ID
  content: String
  created_at: String!
  updated_at: String
}

type Checklist {
  id: ID!
  owner_id: ID!
  name: String!
  vessel_id: ID
  items: JSON
  created_at: String!
  updated_at: String
}

type VesselAudit {
  id: ID!
  owner_id: ID!
  vessel_id: ID!
  finding: String
  severity: String
  created_at: String!
}

type Vessel {
  id: ID!
  owner_id: ID!
  name: String!
  imo: String
  flag: String
  vessel_type: String
  created_at: String!
  updated_at: String
}

type Forecast {
  vessel_id: ID!
  vessel_name: String!
  outlook: String!
  wind_knots: Float!
  wave_height_m: Float!
  valid_until: String!
}

type Analytics {
  total_users: Int!
  roles: JSON!
}

type Template {
  id: ID!
  owner_id: ID!
  name: String!
  body: String
  created_at: String!
}

type User {
  id: ID!
  email: String
  role: String
  display_name: String
  phone: String
  created_at: String
  updated_at: String
}

type ApiKey {
  id: ID!
  owner_id: ID!
  name: String!
  key_prefix: String!
  scope: [String!]
  created_at: String!
}

type ApiKeyWithSecret {
  id: ID!
  name: String!
  key_prefix: String!
  key: String!
  scope: JSON
  created_at: String!
}

type Webhook {
  id: ID!
  owner_id: ID!
  url: String!
  event: String
  created_at: String!
}

type GatewayStatus {
  service: String!
  uptime_seconds: Int!
  rate_limits: JSON!
}

type DeleteResult {
  id: ID!
  deleted: Boolean!
}
`
